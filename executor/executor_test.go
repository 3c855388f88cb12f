package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inf-mc/NoteBot-sub001/config"
	"github.com/inf-mc/NoteBot-sub001/driver"
	"github.com/inf-mc/NoteBot-sub001/driver/drivertest"
	"github.com/inf-mc/NoteBot-sub001/events"
	"github.com/inf-mc/NoteBot-sub001/executor"
	"github.com/inf-mc/NoteBot-sub001/models"
	"github.com/inf-mc/NoteBot-sub001/pool"
)

type fixture struct {
	drv  *drivertest.Driver
	pool *pool.Manager
	ex   *executor.Executor
}

func newFixture(t *testing.T, maxBrowsers, maxPages int) *fixture {
	t.Helper()
	bus := events.NewBus(2, 64)
	t.Cleanup(bus.Close)

	drv := &drivertest.Driver{}
	m := pool.NewManager(config.PoolConfig{
		MaxBrowsers:        maxBrowsers,
		MaxPagesPerBrowser: maxPages,
		IdleTimeout:        time.Hour,
		AcquireTimeout:     2 * time.Second,
		LaunchTimeout:      5 * time.Second,
	}, drv, bus)
	if err := m.Initialize(func() (string, bool) { return "/usr/bin/test-browser", true }); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		_ = m.Shutdown(ctx)
	})

	return &fixture{drv: drv, pool: m, ex: executor.New(m, bus, 5*time.Second)}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var e *models.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected a typed error, got %v", err)
	}
	if e.Code != code {
		t.Fatalf("code = %s, want %s", e.Code, code)
	}
}

func TestDoSuccess(t *testing.T) {
	f := newFixture(t, 1, 1)

	v, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		return "content", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != "content" {
		t.Errorf("value = %v", v)
	}

	s := f.pool.Status()
	if s.Pages.InUse != 0 || s.Pages.Idle != 1 {
		t.Errorf("status after success = %+v", s)
	}

	pages := f.drv.Browsers()[0].LivePages()
	if pages != 1 {
		t.Errorf("live pages = %d, want 1", pages)
	}
}

func TestDoResetsPageBeforeReuse(t *testing.T) {
	f := newFixture(t, 1, 1)

	for i := 0; i < 3; i++ {
		if _, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
			return nil, nil
		}); err != nil {
			t.Fatalf("Do %d: %v", i, err)
		}
	}

	b := f.drv.Browsers()[0]
	if b.LivePages() != 1 {
		t.Fatalf("live pages = %d, want 1 reused page", b.LivePages())
	}
	// One reset per completed operation.
	page := anyLivePage(t, f.drv)
	if n := page.Resets(); n != 3 {
		t.Errorf("resets = %d, want 3", n)
	}
}

func anyLivePage(t *testing.T, drv *drivertest.Driver) *drivertest.Page {
	t.Helper()
	for _, b := range drv.Browsers() {
		for _, p := range b.Pages() {
			if !p.Closed() {
				return p
			}
		}
	}
	t.Fatal("no live page")
	return nil
}

func TestDoErrorKeepsPage(t *testing.T) {
	f := newFixture(t, 1, 1)

	boom := errors.New("element not found")
	_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		return nil, boom
	})
	wantCode(t, err, models.ErrCodeInternal)
	if !errors.Is(err, boom) {
		t.Error("original cause lost")
	}

	s := f.pool.Status()
	if s.Pages.Total != 1 || s.Pages.Idle != 1 {
		t.Errorf("an ordinary failure should not discard the page: %+v", s)
	}
}

func TestDoTypedErrorPassesThrough(t *testing.T) {
	f := newFixture(t, 1, 1)

	_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		return nil, models.NewNavigationError("https://example.com", errors.New("net::ERR_ABORTED"))
	})
	wantCode(t, err, models.ErrCodeNavigation)
}

func TestDoDisconnectErrorDiscardsPage(t *testing.T) {
	f := newFixture(t, 1, 1)

	_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		return nil, drivertest.ErrDisconnected
	})
	wantCode(t, err, models.ErrCodeDisconnected)

	s := f.pool.Status()
	if s.Pages.Total != 0 {
		t.Errorf("disconnect-class failure should discard the page: %+v", s)
	}
}

func TestDoTimeout(t *testing.T) {
	f := newFixture(t, 1, 1)

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return nil, nil
		}
	}, executor.Options{Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	wantCode(t, err, models.ErrCodeTimeout)
	if elapsed < 100*time.Millisecond {
		t.Errorf("timed out after %s, before the deadline", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("timeout took %s to surface", elapsed)
	}

	s := f.pool.Status()
	if s.Pages.Total != 0 {
		t.Errorf("timed-out page should be discarded: %+v", s)
	}

	// The pool recovers: a fresh operation gets a new page.
	if _, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("Do after timeout: %v", err)
	}
}

func TestDoPanicRecovers(t *testing.T) {
	f := newFixture(t, 1, 1)

	_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		panic("nil dereference in op")
	})
	wantCode(t, err, models.ErrCodeInternal)

	if s := f.pool.Status(); s.Pages.InUse != 0 {
		t.Errorf("page leaked after panic: %+v", s)
	}
}

func TestDoReleasesExactlyOnceOnEveryPath(t *testing.T) {
	f := newFixture(t, 1, 1)

	ops := []struct {
		name string
		op   executor.Operation
	}{
		{"success", func(ctx context.Context, p driver.Page) (any, error) { return 1, nil }},
		{"failure", func(ctx context.Context, p driver.Page) (any, error) { return nil, errors.New("boom") }},
		{"disconnect", func(ctx context.Context, p driver.Page) (any, error) { return nil, drivertest.ErrDisconnected }},
		{"panic", func(ctx context.Context, p driver.Page) (any, error) { panic("boom") }},
	}
	for _, tt := range ops {
		t.Run(tt.name, func(t *testing.T) {
			_, _ = f.ex.Do(context.Background(), tt.op)
			if s := f.pool.Status(); s.Pages.InUse != 0 {
				t.Fatalf("page still in use after %s path: %+v", tt.name, s)
			}
		})
	}
}

func TestDoPropagatesAcquireErrors(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.drv.FailLaunches = 1

	_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		return nil, nil
	})
	wantCode(t, err, models.ErrCodeBrowserCreate)
}

func TestDoSerializesOnSaturatedPool(t *testing.T) {
	f := newFixture(t, 1, 1)

	var firstEnd time.Time
	firstDone := make(chan struct{})
	firstStarted := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
			close(firstStarted)
			time.Sleep(50 * time.Millisecond)
			firstEnd = time.Now()
			return nil, nil
		})
		if err != nil {
			t.Errorf("first Do: %v", err)
		}
	}()

	<-firstStarted
	var secondStart time.Time
	_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		secondStart = time.Now()
		return nil, nil
	})
	if err != nil {
		t.Fatalf("second Do: %v", err)
	}
	<-firstDone

	if secondStart.Before(firstEnd) {
		t.Errorf("second operation started %s before the first finished", firstEnd.Sub(secondStart))
	}
	if f.drv.Launches() != 1 {
		t.Errorf("launches = %d, want 1", f.drv.Launches())
	}
}

func TestDoDisconnectMidOperation(t *testing.T) {
	f := newFixture(t, 1, 2)

	proceed := make(chan struct{})
	started := make(chan struct{})
	opDone := make(chan error, 1)
	go func() {
		_, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
			close(started)
			<-proceed
			// A driver call against the dead browser fails.
			if err := p.(*drivertest.Page).Err(); err != nil {
				return nil, err
			}
			return nil, nil
		})
		opDone <- err
	}()

	<-started
	f.drv.Browsers()[0].Disconnect()
	close(proceed)

	err := <-opDone
	wantCode(t, err, models.ErrCodeDisconnected)

	// A fresh operation transparently gets a replacement browser.
	if _, err := f.ex.Do(context.Background(), func(ctx context.Context, p driver.Page) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("Do after disconnect: %v", err)
	}
	if n := f.drv.Launches(); n != 2 {
		t.Errorf("launches = %d, want 2", n)
	}
}

func TestRunTyped(t *testing.T) {
	f := newFixture(t, 1, 1)

	got, err := executor.Run(context.Background(), f.ex, func(ctx context.Context, p driver.Page) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	_, err = executor.Run(context.Background(), f.ex, func(ctx context.Context, p driver.Page) (string, error) {
		return "", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
