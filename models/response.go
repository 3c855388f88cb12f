package models

// Link is a hyperlink extracted from the rendered document.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// ScrapeResponse is the JSON body for POST /api/v1/scrape.
type ScrapeResponse struct {
	Success   bool         `json:"success"`
	HTML      string       `json:"html,omitempty"`
	Title     string       `json:"title,omitempty"`
	FinalURL  string       `json:"final_url,omitempty"`
	Links     []Link       `json:"links,omitempty"`
	ElapsedMs int64        `json:"elapsed_ms"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the JSON body for GET /api/v1/health.
type HealthResponse struct {
	Status  string       `json:"status"` // "healthy" or "degraded"
	Uptime  string       `json:"uptime"`
	Pool    PoolStatus   `json:"pool"`
	Report  HealthReport `json:"report"`
	Version string       `json:"version"`
}
