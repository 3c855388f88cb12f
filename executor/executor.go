// Package executor wraps caller-supplied browser operations with page
// acquisition, a deadline, typed error translation, and a guaranteed
// release on every exit path.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inf-mc/NoteBot-sub001/driver"
	"github.com/inf-mc/NoteBot-sub001/events"
	"github.com/inf-mc/NoteBot-sub001/models"
	"github.com/inf-mc/NoteBot-sub001/pool"
)

// Operation is a caller-supplied unit of work run against a borrowed page.
// The context carries the operation deadline; implementations should pass
// it to every driver call.
type Operation func(ctx context.Context, page driver.Page) (any, error)

// Options tunes a single Do call.
type Options struct {
	// Timeout overrides the executor's default operation deadline.
	Timeout time.Duration
}

// Executor executes operations against the pool. Safe for concurrent use.
type Executor struct {
	pool           *pool.Manager
	bus            *events.Bus
	defaultTimeout time.Duration
}

// New creates an Executor with the given default operation timeout.
func New(p *pool.Manager, bus *events.Bus, defaultTimeout time.Duration) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Executor{pool: p, bus: bus, defaultTimeout: defaultTimeout}
}

// Do acquires a page, runs op under the operation deadline, and releases
// the page exactly once whether op succeeds, fails, panics, or times out.
// Pool acquisition errors propagate unchanged; all other failures come
// back as *models.Error.
func (e *Executor) Do(ctx context.Context, op Operation, opts ...Options) (any, error) {
	timeout := e.defaultTimeout
	if len(opts) > 0 && opts[0].Timeout > 0 {
		timeout = opts[0].Timeout
	}

	h, err := e.pool.AcquirePage(ctx)
	if err != nil {
		return nil, err
	}

	opID := uuid.NewString()
	start := time.Now()
	e.bus.Publish(events.Event{
		Type:        events.OperationStart,
		OperationID: opID,
		BrowserID:   h.BrowserID(),
		PageID:      h.ID(),
	})

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	res := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				res <- outcome{err: models.New(models.ErrCodeInternal, fmt.Sprintf("operation panicked: %v", r), nil)}
			}
		}()
		v, opErr := op(opCtx, h.Page())
		res <- outcome{value: v, err: opErr}
	}()

	select {
	case out := <-res:
		elapsed := time.Since(start)
		if out.err != nil {
			typed, discard := e.classify(out.err, h.BrowserID(), timeout)
			e.pool.ReleasePage(h, discard)
			e.finish(opID, h.BrowserID(), false, elapsed, typed)
			return nil, typed
		}

		// Reset drops the loaded DOM before the page goes back to the
		// idle set; a failed reset means the page is not reusable.
		if resetErr := h.Page().Reset(); resetErr != nil {
			slog.Warn("page reset failed, discarding", "pageID", h.ID(), "error", resetErr)
			e.pool.ReleasePage(h, true)
		} else {
			e.pool.ReleasePage(h, false)
		}
		e.finish(opID, h.BrowserID(), true, elapsed, nil)
		return out.value, nil

	case <-opCtx.Done():
		// The underlying browser call may still be running; the page is
		// in an unknown state and must not be reused.
		elapsed := time.Since(start)
		e.pool.ReleasePage(h, true)
		typed := models.NewTimeoutError(timeout, opCtx.Err())
		e.finish(opID, h.BrowserID(), false, elapsed, typed)
		return nil, typed
	}
}

// classify maps an operation failure to a typed error and decides whether
// the page survives. Deadline and cancellation failures leave the page in
// an unknown state; disconnect-class failures mean the whole browser is
// unusable. Everything else keeps the page reusable.
func (e *Executor) classify(err error, browserID string, timeout time.Duration) (*models.Error, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewTimeoutError(timeout, err), true
	case errors.Is(err, context.Canceled):
		return models.New(models.ErrCodeTimeout, "operation canceled", err), true
	case models.IsDisconnect(err):
		typed := models.AsError(err)
		if typed.Code != models.ErrCodeDisconnected {
			typed = models.NewDisconnectedError(browserID, err)
		}
		return typed, true
	default:
		return models.AsError(err), false
	}
}

func (e *Executor) finish(opID, browserID string, success bool, elapsed time.Duration, typed *models.Error) {
	e.bus.Publish(events.Event{
		Type:        events.OperationEnd,
		OperationID: opID,
		BrowserID:   browserID,
		Success:     success,
		Duration:    elapsed,
	})
	if typed != nil {
		e.bus.Publish(events.Event{
			Type:        events.Error,
			OperationID: opID,
			BrowserID:   browserID,
			Code:        typed.Code,
		})
		slog.Warn("operation failed",
			"operationID", opID,
			"code", typed.Code,
			"severity", string(models.SeverityOf(typed)),
			"retryable", models.Retryable(typed),
			"elapsed", elapsed,
		)
	}
}

// Run executes a typed operation through ex.Do.
func Run[T any](ctx context.Context, ex *Executor, op func(ctx context.Context, page driver.Page) (T, error), opts ...Options) (T, error) {
	v, err := ex.Do(ctx, func(ctx context.Context, page driver.Page) (any, error) {
		return op(ctx, page)
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
