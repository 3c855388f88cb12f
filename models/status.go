package models

import "time"

// BrowserCounts summarises the browser side of the pool.
type BrowserCounts struct {
	Count int `json:"count"`
	Max   int `json:"max"`
}

// PageCounts summarises the page side of the pool.
type PageCounts struct {
	Total int `json:"total"`
	InUse int `json:"in_use"`
	Idle  int `json:"idle"`
	Max   int `json:"max"`
}

// PoolStatus is the side-effect-free snapshot returned by the pool manager.
type PoolStatus struct {
	Browsers   BrowserCounts `json:"browsers"`
	Pages      PageCounts    `json:"pages"`
	QueueDepth int           `json:"queue_depth"`
}

// HealthReport is the monitor's snapshot of process health and operation
// statistics since construction (or the last Reset).
type HealthReport struct {
	MemoryBytes     uint64            `json:"memory_bytes"`
	MemoryWarn      bool              `json:"memory_warn"`
	TotalOperations uint64            `json:"total_operations"`
	Succeeded       uint64            `json:"succeeded"`
	Failed          uint64            `json:"failed"`
	SuccessRate     float64           `json:"success_rate"`
	AvgDurationMs   float64           `json:"avg_duration_ms"`
	BrowsersCreated uint64            `json:"browsers_created"`
	PagesCreated    uint64            `json:"pages_created"`
	ErrorsByCode    map[string]uint64 `json:"errors_by_code,omitempty"`
	Since           time.Time         `json:"since"`
}
