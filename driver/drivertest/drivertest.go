// Package drivertest provides an in-memory fake of the driver interfaces
// for pool and executor tests. Launches, page creation, and disconnects are
// all controllable from the test.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/inf-mc/NoteBot-sub001/driver"
)

// ErrDisconnected is what fake driver calls return once the browser has
// been disconnected. Its text matches the markers the error taxonomy
// recognises as a lost control connection.
var ErrDisconnected = errors.New("cdp connection: use of closed network connection")

// Driver is a fake driver.Driver. The zero value is usable.
type Driver struct {
	mu sync.Mutex

	// LaunchDelay makes each launch take this long, for queue-timing tests.
	LaunchDelay time.Duration

	// FailLaunches makes the next N launches fail.
	FailLaunches int

	browsers []*Browser
	launches int
}

// Launches returns how many launches were attempted.
func (d *Driver) Launches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launches
}

// Browsers returns all browsers handed out so far, in launch order.
func (d *Driver) Browsers() []*Browser {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Browser, len(d.browsers))
	copy(out, d.browsers)
	return out
}

func (d *Driver) Launch(ctx context.Context, executablePath string, opts driver.LaunchOptions) (driver.Browser, error) {
	d.mu.Lock()
	d.launches++
	n := d.launches
	fail := d.FailLaunches > 0
	if fail {
		d.FailLaunches--
	}
	delay := d.LaunchDelay
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, fmt.Errorf("launch %d failed", n)
	}

	b := &Browser{
		name:         fmt.Sprintf("fake-browser-%d", n),
		disconnected: make(chan struct{}),
	}
	d.mu.Lock()
	d.browsers = append(d.browsers, b)
	d.mu.Unlock()
	return b, nil
}

// Browser is a fake driver.Browser.
type Browser struct {
	mu sync.Mutex

	// FailNewPages makes the next N NewPage calls fail.
	FailNewPages int

	name           string
	pages          []*Page
	disconnected   chan struct{}
	gone           bool
	closed         bool
	newPageBarrier chan struct{}
	newPageWaiting int
}

// BlockNewPages makes subsequent NewPage calls wait until the returned
// release function is called, so a test can disconnect the browser while a
// page creation is in flight.
func (b *Browser) BlockNewPages() (release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.newPageBarrier = ch
	return func() { close(ch) }
}

// BlockedNewPages reports how many NewPage calls are waiting on the barrier.
func (b *Browser) BlockedNewPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.newPageWaiting
}

// Name identifies the browser in test failure messages.
func (b *Browser) Name() string { return b.name }

// Disconnect simulates a crash: the disconnect channel closes and every
// live page starts failing with ErrDisconnected.
func (b *Browser) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gone {
		return
	}
	b.gone = true
	for _, p := range b.pages {
		p.fail(ErrDisconnected)
	}
	close(b.disconnected)
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Pages returns every page the browser created, in creation order.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Page, len(b.pages))
	copy(out, b.pages)
	return out
}

// LivePages counts pages that have not been closed.
func (b *Browser) LivePages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.pages {
		if !p.Closed() {
			n++
		}
	}
	return n
}

func (b *Browser) NewPage(ctx context.Context) (driver.Page, error) {
	b.mu.Lock()
	barrier := b.newPageBarrier
	if barrier != nil {
		b.newPageWaiting++
	}
	b.mu.Unlock()

	if barrier != nil {
		select {
		case <-barrier:
		case <-ctx.Done():
		}
		b.mu.Lock()
		b.newPageWaiting--
		b.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gone {
		return nil, ErrDisconnected
	}
	if b.FailNewPages > 0 {
		b.FailNewPages--
		return nil, errors.New("new page failed")
	}
	p := &Page{}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *Browser) Disconnected() <-chan struct{} {
	return b.disconnected
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Page is a fake driver.Page.
type Page struct {
	mu     sync.Mutex
	closed bool
	err    error
	resets int
}

func (p *Page) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Err returns the error injected by a disconnect, if any. Operations under
// test use it to simulate a driver call against a dead browser.
func (p *Page) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Closed reports whether the page was destroyed.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Resets counts Reset calls.
func (p *Page) Resets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

func (p *Page) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.resets++
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Page) Rod() *rod.Page { return nil }
