// Package monitor observes the pool and executor through the event stream
// and samples process memory on an interval. It is advisory only: it never
// touches pool internals and never closes a browser.
package monitor

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/inf-mc/NoteBot-sub001/config"
	"github.com/inf-mc/NoteBot-sub001/events"
	"github.com/inf-mc/NoteBot-sub001/models"
)

// Monitor maintains rolling operation statistics and memory threshold
// signals. Counters start at zero on construction and are never persisted.
type Monitor struct {
	cfg config.MonitorConfig
	bus *events.Bus

	mu              sync.Mutex
	since           time.Time
	totalOps        uint64
	succeeded       uint64
	failed          uint64
	browsersCreated uint64
	pagesCreated    uint64
	errorsByCode    map[string]uint64

	// bounded rolling window of operation durations
	window []time.Duration
	next   int
	filled int

	lastMemory uint64
	aboveWarn  bool
	aboveError bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Monitor, subscribes it to the bus, and starts the memory
// sampler.
func New(cfg config.MonitorConfig, bus *events.Bus) *Monitor {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 30 * time.Second
	}

	m := &Monitor{
		cfg:          cfg,
		bus:          bus,
		since:        time.Now(),
		errorsByCode: make(map[string]uint64),
		window:       make([]time.Duration, cfg.WindowSize),
		done:         make(chan struct{}),
	}

	bus.Subscribe(events.BrowserCreated, m.onBrowserCreated)
	bus.Subscribe(events.PageCreated, m.onPageCreated)
	bus.Subscribe(events.OperationStart, m.onOperationStart)
	bus.Subscribe(events.OperationEnd, m.onOperationEnd)
	bus.Subscribe(events.Error, m.onError)

	m.wg.Add(1)
	go m.sampleLoop()
	return m
}

func (m *Monitor) onBrowserCreated(events.Event) {
	m.mu.Lock()
	m.browsersCreated++
	m.mu.Unlock()
}

func (m *Monitor) onPageCreated(events.Event) {
	m.mu.Lock()
	m.pagesCreated++
	m.mu.Unlock()
}

func (m *Monitor) onOperationStart(events.Event) {
	m.mu.Lock()
	m.totalOps++
	m.mu.Unlock()
}

func (m *Monitor) onOperationEnd(e events.Event) {
	m.mu.Lock()
	if e.Success {
		m.succeeded++
	} else {
		m.failed++
	}
	m.window[m.next] = e.Duration
	m.next = (m.next + 1) % len(m.window)
	if m.filled < len(m.window) {
		m.filled++
	}
	m.mu.Unlock()
}

func (m *Monitor) onError(e events.Event) {
	m.mu.Lock()
	m.errorsByCode[e.Code]++
	m.mu.Unlock()
}

// Report is a pure read of the current snapshot.
func (m *Monitor) Report() models.HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := models.HealthReport{
		MemoryBytes:     m.lastMemory,
		MemoryWarn:      m.aboveWarn,
		TotalOperations: m.totalOps,
		Succeeded:       m.succeeded,
		Failed:          m.failed,
		BrowsersCreated: m.browsersCreated,
		PagesCreated:    m.pagesCreated,
		Since:           m.since,
	}
	if done := m.succeeded + m.failed; done > 0 {
		r.SuccessRate = float64(m.succeeded) / float64(done)
	}
	if m.filled > 0 {
		var sum time.Duration
		for i := 0; i < m.filled; i++ {
			sum += m.window[i]
		}
		r.AvgDurationMs = float64(sum.Milliseconds()) / float64(m.filled)
	}
	if len(m.errorsByCode) > 0 {
		r.ErrorsByCode = make(map[string]uint64, len(m.errorsByCode))
		for code, n := range m.errorsByCode {
			r.ErrorsByCode[code] = n
		}
	}
	return r
}

// Reset zeroes all counters, bounding the monitor's own bookkeeping in
// long-running processes.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = time.Now()
	m.totalOps, m.succeeded, m.failed = 0, 0, 0
	m.browsersCreated, m.pagesCreated = 0, 0
	m.errorsByCode = make(map[string]uint64)
	m.next, m.filled = 0, 0
}

// Stop terminates the sampler. Event subscriptions stay registered but
// become inert once the bus is closed.
func (m *Monitor) Stop() {
	close(m.done)
	m.wg.Wait()
}

func (m *Monitor) sampleLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Sample reads process memory once and raises threshold events on upward
// crossings. Exported so tests and the host can trigger it directly.
func (m *Monitor) Sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	used := ms.HeapInuse

	m.mu.Lock()
	m.lastMemory = used
	warnCross := m.cfg.MemoryWarnBytes > 0 && used >= m.cfg.MemoryWarnBytes && !m.aboveWarn
	errorCross := m.cfg.MemoryErrorBytes > 0 && used >= m.cfg.MemoryErrorBytes && !m.aboveError
	m.aboveWarn = m.cfg.MemoryWarnBytes > 0 && used >= m.cfg.MemoryWarnBytes
	m.aboveError = m.cfg.MemoryErrorBytes > 0 && used >= m.cfg.MemoryErrorBytes
	m.mu.Unlock()

	if errorCross {
		m.bus.Publish(events.Event{Type: events.MemoryError, Current: used, Threshold: m.cfg.MemoryErrorBytes})
		slog.Error("memory above error threshold", "current", used, "threshold", m.cfg.MemoryErrorBytes)
	} else if warnCross {
		m.bus.Publish(events.Event{Type: events.MemoryWarning, Current: used, Threshold: m.cfg.MemoryWarnBytes})
		slog.Warn("memory above warning threshold", "current", used, "threshold", m.cfg.MemoryWarnBytes)
	}
}
