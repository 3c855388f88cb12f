package pool

import (
	"time"

	"github.com/inf-mc/NoteBot-sub001/driver"
)

// BrowserState is the lifecycle state of a pooled browser instance.
type BrowserState string

const (
	// StateStarting marks an instance whose launch is still in flight.
	StateStarting BrowserState = "starting"

	// StateReady marks a connected instance accepting page allocation.
	StateReady BrowserState = "ready"

	// StateDraining marks an instance that allocates no new pages while
	// its in-use pages finish, during shutdown.
	StateDraining BrowserState = "draining"

	// StateDisconnected is terminal: the control connection is gone.
	StateDisconnected BrowserState = "disconnected"
)

// PageState is the lifecycle state of a pooled page.
type PageState string

const (
	PageIdle    PageState = "idle"
	PageInUse   PageState = "in_use"
	PageClosing PageState = "closing"
)

// browserInstance is one managed browser. All fields are guarded by the
// manager's mutex; the driver handle is owned exclusively by the manager.
type browserInstance struct {
	id      string
	browser driver.Browser
	state   BrowserState

	createdAt  time.Time
	lastUsedAt time.Time

	pages   map[string]*PageHandle
	pending int // page slots reserved for in-flight creation
}

func (b *browserInstance) inUseCount() int {
	n := 0
	for _, h := range b.pages {
		if h.state == PageInUse {
			n++
		}
	}
	return n
}

func (b *browserInstance) idlePage() *PageHandle {
	var newest *PageHandle
	for _, h := range b.pages {
		if h.state != PageIdle {
			continue
		}
		// Prefer the most recently active idle page so stale ones keep
		// aging toward the idle deadline.
		if newest == nil || h.lastActivityAt.After(newest.lastActivityAt) {
			newest = h
		}
	}
	return newest
}

// PageHandle is a borrowed reference to one pooled page. The manager owns
// the handle; callers hold it only between AcquirePage and ReleasePage.
type PageHandle struct {
	id        string
	browserID string
	page      driver.Page

	// guarded by the manager's mutex
	state          PageState
	lastActivityAt time.Time
}

// ID returns the page's opaque identifier.
func (h *PageHandle) ID() string { return h.id }

// BrowserID returns the owning browser's identifier.
func (h *PageHandle) BrowserID() string { return h.browserID }

// Page returns the driver page for the duration of the borrow.
func (h *PageHandle) Page() driver.Page { return h.page }
