// Package pool owns every browser and page resource in the process. It
// admits or queues acquirers, balances pages across browsers, evicts idle
// resources, and recovers from browser disconnects. No other component
// closes a browser or page directly.
package pool

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inf-mc/NoteBot-sub001/config"
	"github.com/inf-mc/NoteBot-sub001/driver"
	"github.com/inf-mc/NoteBot-sub001/events"
	"github.com/inf-mc/NoteBot-sub001/models"
)

type acquireResult struct {
	handle *PageHandle
	err    error
}

// waiter is one queued acquirer. Fields are guarded by the manager's mutex;
// ch is buffered so delivery under the lock never blocks.
type waiter struct {
	ch        chan acquireResult
	elem      *list.Element
	delivered bool
	canceled  bool
}

// reservation is a claimed capacity slot: either a brand-new browser or a
// page slot on an existing one. It keeps the pool's counts bounded while
// the slow driver calls run outside the lock.
type reservation struct {
	inst       *browserInstance
	newBrowser bool
}

// Manager is the pool manager. Construct one per process and inject it
// into every consumer; it is safe for concurrent use.
type Manager struct {
	cfg config.PoolConfig
	drv driver.Driver
	bus *events.Bus

	mu          sync.Mutex
	initialized bool
	closed      bool
	execPath    string
	browsers    map[string]*browserInstance
	waiters     *list.List // of *waiter, FIFO by arrival

	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates a Manager. Browsers are launched lazily on first
// demand; call Initialize before the first AcquirePage.
func NewManager(cfg config.PoolConfig, drv driver.Driver, bus *events.Bus) *Manager {
	if cfg.MaxBrowsers < 1 {
		cfg.MaxBrowsers = 1
	}
	if cfg.MaxPagesPerBrowser < 1 {
		cfg.MaxPagesPerBrowser = 1
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 30 * time.Second
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 30 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		drv:      drv,
		bus:      bus,
		browsers: make(map[string]*browserInstance),
		waiters:  list.New(),
		done:     make(chan struct{}),
	}
}

// Initialize locates the browser executable and starts the idle sweep. It
// fails fast when no executable can be found; it does not launch browsers.
func (m *Manager) Initialize(locate driver.LocateFunc) error {
	if locate == nil {
		locate = driver.LocateExecutable
	}

	path := m.cfg.Launch.ExecutablePath
	if path == "" {
		found, ok := locate()
		if !ok {
			return models.NewInitializationError("no browser executable found on host", nil)
		}
		path = found
	}

	m.mu.Lock()
	m.execPath = path
	m.initialized = true
	m.mu.Unlock()

	slog.Info("browser pool initialized",
		"executable", path,
		"maxBrowsers", m.cfg.MaxBrowsers,
		"maxPagesPerBrowser", m.cfg.MaxPagesPerBrowser,
	)

	m.wg.Add(1)
	go m.sweepLoop()
	return nil
}

// AcquirePage returns an exclusive page, reusing an idle one, growing the
// pool, or waiting on the FIFO admission queue up to AcquireTimeout.
func (m *Manager) AcquirePage(ctx context.Context) (*PageHandle, error) {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil, models.NewInitializationError("pool not initialized", nil)
	}
	if m.closed {
		m.mu.Unlock()
		return nil, models.New(models.ErrCodePoolClosed, "pool is shut down", nil)
	}

	if h := m.takeIdleLocked(); h != nil {
		m.mu.Unlock()
		return h, nil
	}

	if res, ok := m.reserveLocked(); ok {
		m.mu.Unlock()
		return m.buildPage(res)
	}

	w := &waiter{ch: make(chan acquireResult, 1)}
	w.elem = m.waiters.PushBack(w)
	depth := m.waiters.Len()
	m.mu.Unlock()

	slog.Debug("acquire queued", "queueDepth", depth)

	timer := time.NewTimer(m.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case r := <-w.ch:
		return r.handle, r.err
	case <-timer.C:
		if r, delivered := m.cancelWaiter(w); delivered {
			return r.handle, r.err
		}
		limit, current := m.pageCounts()
		return nil, models.NewResourceLimitError("page", limit, current)
	case <-ctx.Done():
		if r, delivered := m.cancelWaiter(w); delivered {
			return r.handle, r.err
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, models.NewTimeoutError(m.cfg.AcquireTimeout, ctx.Err())
		}
		return nil, models.New(models.ErrCodeTimeout, "acquire canceled by caller", ctx.Err())
	}
}

// ReleasePage returns a borrowed page. With discard set the page is closed
// instead of reused; a draining or disconnected browser whose last page is
// discarded is torn down with it.
func (m *Manager) ReleasePage(h *PageHandle, discard bool) {
	if h == nil {
		return
	}

	m.mu.Lock()
	inst := m.browsers[h.browserID]
	if inst == nil {
		// Browser already torn down; the page died with it.
		m.mu.Unlock()
		go func() { _ = h.page.Close() }()
		return
	}
	if h.state != PageInUse {
		m.mu.Unlock()
		return
	}

	now := time.Now()
	if discard || inst.state != StateReady {
		delete(inst.pages, h.id)
		h.state = PageClosing
		removeInst := inst.state != StateReady && len(inst.pages) == 0 && inst.pending == 0
		if removeInst {
			delete(m.browsers, inst.id)
		}
		m.pumpLocked()
		m.mu.Unlock()

		go func() { _ = h.page.Close() }()
		if removeInst {
			go func() { _ = inst.browser.Close() }()
		}
		slog.Debug("page discarded", "pageID", h.id, "browserID", h.browserID)
		return
	}

	h.state = PageIdle
	h.lastActivityAt = now
	inst.lastUsedAt = now
	m.pumpLocked()
	m.mu.Unlock()
}

// Status is a side-effect-free snapshot of the pool.
func (m *Manager) Status() models.PoolStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := models.PoolStatus{
		Browsers:   models.BrowserCounts{Max: m.cfg.MaxBrowsers},
		Pages:      models.PageCounts{Max: m.cfg.MaxBrowsers * m.cfg.MaxPagesPerBrowser},
		QueueDepth: m.waiters.Len(),
	}
	for _, inst := range m.browsers {
		if inst.state == StateDisconnected {
			continue
		}
		s.Browsers.Count++
		for _, h := range inst.pages {
			s.Pages.Total++
			switch h.state {
			case PageInUse:
				s.Pages.InUse++
			case PageIdle:
				s.Pages.Idle++
			}
		}
	}
	return s
}

// Shutdown stops admission, fails queued waiters, drains in-use pages
// until ctx expires, then force-closes everything left.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	for e := m.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.elem = nil
		m.deliverLocked(w, acquireResult{err: models.New(models.ErrCodePoolClosed, "pool is shutting down", nil)})
	}
	m.waiters.Init()

	var closePages []driver.Page
	for _, inst := range m.browsers {
		if inst.state == StateReady {
			inst.state = StateDraining
		}
		for pid, h := range inst.pages {
			if h.state == PageIdle {
				h.state = PageClosing
				delete(inst.pages, pid)
				closePages = append(closePages, h.page)
			}
		}
	}
	m.mu.Unlock()

	close(m.done)
	for _, p := range closePages {
		_ = p.Close()
	}

	drainErr := m.awaitDrain(ctx)

	// Force-close whatever is left.
	m.mu.Lock()
	remaining := make([]driver.Browser, 0, len(m.browsers))
	for id, inst := range m.browsers {
		remaining = append(remaining, inst.browser)
		delete(m.browsers, id)
	}
	m.mu.Unlock()
	for _, b := range remaining {
		if b != nil {
			_ = b.Close()
		}
	}

	m.wg.Wait()
	slog.Info("browser pool shut down", "forced", len(remaining))
	return drainErr
}

func (m *Manager) awaitDrain(ctx context.Context) error {
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for {
		m.mu.Lock()
		busy := 0
		for _, inst := range m.browsers {
			busy += len(inst.pages) + inst.pending
		}
		m.mu.Unlock()
		if busy == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			slog.Warn("pool shutdown deadline reached with pages in use", "busy", busy)
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// --- internal, all *Locked methods require m.mu held ---

// takeIdleLocked claims an idle page, preferring the browser with the
// fewest in-use pages and, among ties, the least recently used.
func (m *Manager) takeIdleLocked() *PageHandle {
	var best *browserInstance
	for _, inst := range m.browsers {
		if inst.state != StateReady || inst.idlePage() == nil {
			continue
		}
		if best == nil || betterCandidate(inst, best) {
			best = inst
		}
	}
	if best == nil {
		return nil
	}
	h := best.idlePage()
	now := time.Now()
	h.state = PageInUse
	h.lastActivityAt = now
	best.lastUsedAt = now
	return h
}

func betterCandidate(a, b *browserInstance) bool {
	au, bu := a.inUseCount(), b.inUseCount()
	if au != bu {
		return au < bu
	}
	return a.lastUsedAt.Before(b.lastUsedAt)
}

// reserveLocked claims a growth slot: a new browser while under
// MaxBrowsers, otherwise a page slot on the least-loaded Ready browser.
func (m *Manager) reserveLocked() (reservation, bool) {
	if m.liveBrowserCountLocked() < m.cfg.MaxBrowsers {
		now := time.Now()
		inst := &browserInstance{
			id:         uuid.NewString(),
			state:      StateStarting,
			createdAt:  now,
			lastUsedAt: now,
			pages:      make(map[string]*PageHandle),
			pending:    1,
		}
		m.browsers[inst.id] = inst
		return reservation{inst: inst, newBrowser: true}, true
	}

	var best *browserInstance
	for _, inst := range m.browsers {
		if inst.state != StateReady || len(inst.pages)+inst.pending >= m.cfg.MaxPagesPerBrowser {
			continue
		}
		if best == nil || betterCandidate(inst, best) {
			best = inst
		}
	}
	if best == nil {
		return reservation{}, false
	}
	best.pending++
	return reservation{inst: best}, true
}

func (m *Manager) liveBrowserCountLocked() int {
	n := 0
	for _, inst := range m.browsers {
		if inst.state != StateDisconnected {
			n++
		}
	}
	return n
}

// pageCounts snapshots the occupancy for the timeout error, so the counts
// reflect the pool at failure time rather than at enqueue time.
func (m *Manager) pageCounts() (limit, current int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pageCountsLocked()
}

func (m *Manager) pageCountsLocked() (limit, current int) {
	limit = m.cfg.MaxBrowsers * m.cfg.MaxPagesPerBrowser
	for _, inst := range m.browsers {
		current += len(inst.pages) + inst.pending
	}
	return limit, current
}

// pumpLocked matches queued waiters with available capacity, oldest waiter
// first. A single release frees a single page, so a release wakes at most
// one waiter.
func (m *Manager) pumpLocked() {
	for m.waiters.Len() > 0 {
		if h := m.takeIdleLocked(); h != nil {
			w := m.popWaiterLocked()
			if !m.deliverLocked(w, acquireResult{handle: h}) {
				h.state = PageIdle
			}
			continue
		}

		res, ok := m.reserveLocked()
		if !ok {
			return
		}
		w := m.popWaiterLocked()
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.buildFor(w, res)
		}()
	}
}

func (m *Manager) popWaiterLocked() *waiter {
	e := m.waiters.Front()
	m.waiters.Remove(e)
	w := e.Value.(*waiter)
	w.elem = nil
	return w
}

func (m *Manager) deliverLocked(w *waiter, r acquireResult) bool {
	if w.canceled || w.delivered {
		return false
	}
	w.delivered = true
	w.ch <- r
	return true
}

// cancelWaiter removes a timed-out waiter. If delivery raced the timeout,
// the already-buffered result is returned instead so the page is not lost.
func (m *Manager) cancelWaiter(w *waiter) (acquireResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.delivered {
		return <-w.ch, true
	}
	w.canceled = true
	if w.elem != nil {
		m.waiters.Remove(w.elem)
		w.elem = nil
	}
	return acquireResult{}, false
}

// buildFor creates a page for a queued waiter. If the waiter gave up in
// the meantime, the fresh page goes back to the idle set.
func (m *Manager) buildFor(w *waiter, res reservation) {
	h, err := m.buildPage(res)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.deliverLocked(w, acquireResult{err: err})
		return
	}
	if !m.deliverLocked(w, acquireResult{handle: h}) {
		h.state = PageIdle
		h.lastActivityAt = time.Now()
		m.pumpLocked()
	}
}

// buildPage turns a reservation into an in-use page, launching the browser
// first when the reservation is for a new instance. Driver calls run
// outside the manager lock, bounded by LaunchTimeout.
func (m *Manager) buildPage(res reservation) (*PageHandle, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.LaunchTimeout)
	defer cancel()

	inst := res.inst
	if res.newBrowser {
		b, err := m.drv.Launch(ctx, m.execPath, m.cfg.Launch)
		if err != nil {
			m.mu.Lock()
			delete(m.browsers, inst.id)
			m.pumpLocked()
			m.mu.Unlock()
			m.bus.Publish(events.Event{Type: events.Error, BrowserID: inst.id, Code: models.ErrCodeBrowserCreate})
			slog.Error("browser launch failed", "browserID", inst.id, "error", err)
			return nil, models.NewBrowserCreateError(err)
		}

		m.mu.Lock()
		if m.closed {
			delete(m.browsers, inst.id)
			m.mu.Unlock()
			go func() { _ = b.Close() }()
			return nil, models.New(models.ErrCodePoolClosed, "pool is shut down", nil)
		}
		inst.browser = b
		inst.state = StateReady
		m.mu.Unlock()

		m.bus.Publish(events.Event{Type: events.BrowserCreated, BrowserID: inst.id})
		slog.Info("browser launched", "browserID", inst.id)

		m.wg.Add(1)
		go m.watchDisconnect(inst)
	}

	pg, err := inst.browser.NewPage(ctx)
	if err != nil {
		m.mu.Lock()
		inst.pending--
		disconnected := inst.state == StateDisconnected
		removeInst := inst.state != StateReady && len(inst.pages) == 0 && inst.pending == 0
		if removeInst {
			delete(m.browsers, inst.id)
		}
		m.pumpLocked()
		m.mu.Unlock()
		if removeInst {
			go func() { _ = inst.browser.Close() }()
		}
		if disconnected {
			m.bus.Publish(events.Event{Type: events.Error, BrowserID: inst.id, Code: models.ErrCodeDisconnected})
			return nil, models.NewDisconnectedError(inst.id, err)
		}
		m.bus.Publish(events.Event{Type: events.Error, BrowserID: inst.id, Code: models.ErrCodePageCreate})
		return nil, models.NewPageCreateError(inst.id, err)
	}

	now := time.Now()
	h := &PageHandle{
		id:             uuid.NewString(),
		browserID:      inst.id,
		page:           pg,
		state:          PageInUse,
		lastActivityAt: now,
	}

	m.mu.Lock()
	inst.pending--
	if inst.state != StateReady {
		// Disconnected (or draining) while the page was being created.
		removeInst := len(inst.pages) == 0 && inst.pending == 0
		if removeInst {
			delete(m.browsers, inst.id)
		}
		m.mu.Unlock()
		go func() { _ = pg.Close() }()
		if removeInst {
			go func() { _ = inst.browser.Close() }()
		}
		return nil, models.NewDisconnectedError(inst.id, nil)
	}
	inst.pages[h.id] = h
	inst.lastUsedAt = now
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.PageCreated, BrowserID: inst.id, PageID: h.id})
	return h, nil
}
