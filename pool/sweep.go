package pool

import (
	"log/slog"
	"time"

	"github.com/inf-mc/NoteBot-sub001/driver"
	"github.com/inf-mc/NoteBot-sub001/events"
	"github.com/inf-mc/NoteBot-sub001/models"
)

// sweepLoop evicts idle pages and empty browsers on a fixed interval of
// half the idle timeout.
func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	interval := m.cfg.IdleTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()
	var closePages []driver.Page
	var closeBrowsers []driver.Browser

	m.mu.Lock()
	// With acquirers queued nothing is truly idle; eviction would race
	// the pump's handoff.
	if m.waiters.Len() > 0 {
		m.mu.Unlock()
		return
	}
	for id, inst := range m.browsers {
		for pid, h := range inst.pages {
			if h.state == PageIdle && now.Sub(h.lastActivityAt) > m.cfg.IdleTimeout {
				h.state = PageClosing
				delete(inst.pages, pid)
				closePages = append(closePages, h.page)
				slog.Debug("idle page evicted", "pageID", pid, "browserID", id)
			}
		}
		if inst.state == StateReady && len(inst.pages) == 0 && inst.pending == 0 &&
			now.Sub(inst.lastUsedAt) > m.cfg.IdleTimeout {
			delete(m.browsers, id)
			closeBrowsers = append(closeBrowsers, inst.browser)
			slog.Info("idle browser evicted", "browserID", id)
		}
	}
	m.mu.Unlock()

	for _, p := range closePages {
		go func(p driver.Page) { _ = p.Close() }(p)
	}
	for _, b := range closeBrowsers {
		go func(b driver.Browser) { _ = b.Close() }(b)
	}
}

// watchDisconnect waits for the browser's disconnect signal and retires
// the instance. In-use pages stay tracked so their operations surface the
// disconnect and release with discard; the next acquire transparently
// launches a replacement.
func (m *Manager) watchDisconnect(inst *browserInstance) {
	defer m.wg.Done()

	select {
	case <-inst.browser.Disconnected():
	case <-m.done:
		return
	}

	var closePages []driver.Page
	m.mu.Lock()
	if inst.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	inst.state = StateDisconnected
	for pid, h := range inst.pages {
		if h.state == PageIdle {
			h.state = PageClosing
			delete(inst.pages, pid)
			closePages = append(closePages, h.page)
		}
	}
	inUse := len(inst.pages)
	removable := inUse == 0 && inst.pending == 0
	var b driver.Browser
	if removable {
		delete(m.browsers, inst.id)
		b = inst.browser
	}
	m.pumpLocked()
	m.mu.Unlock()

	for _, p := range closePages {
		_ = p.Close()
	}
	if b != nil {
		go func() { _ = b.Close() }()
	}

	m.bus.Publish(events.Event{Type: events.Error, BrowserID: inst.id, Code: models.ErrCodeDisconnected})
	slog.Warn("browser disconnected", "browserID", inst.id, "pagesInUse", inUse)
}
