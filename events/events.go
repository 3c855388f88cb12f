// Package events carries the typed event stream emitted by the pool
// manager, the executor, and the health monitor. Subscribers never block
// publishers: dispatch happens on a bounded worker pool.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies an event kind.
type Type string

const (
	BrowserCreated Type = "browser.created"
	PageCreated    Type = "page.created"
	OperationStart Type = "operation.start"
	OperationEnd   Type = "operation.end"
	Error          Type = "error"
	MemoryWarning  Type = "memory.warning"
	MemoryError    Type = "memory.error"
)

// Event is a single entry on the stream. Fields that do not apply to the
// event's type are left zero.
type Event struct {
	ID        string
	Type      Type
	Timestamp time.Time

	OperationID string
	BrowserID   string
	PageID      string

	// operation.end
	Success  bool
	Duration time.Duration

	// error
	Code string

	// memory.warning / memory.error
	Current   uint64
	Threshold uint64
}

// Handler receives events for the types it subscribed to.
type Handler func(Event)

type task struct {
	event   Event
	handler Handler
}

// Bus is a publish/subscribe hub for Event values. Safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler

	tasks  chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBus creates a Bus with the given number of dispatch workers and
// buffer size. Zero values fall back to 4 workers and a 256-event buffer.
func NewBus(workers, buffer int) *Bus {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers: make(map[Type][]Handler),
		tasks:    make(chan task, buffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case t := <-b.tasks:
			runHandler(t.handler, t.event)
		case <-b.ctx.Done():
			return
		}
	}
}

func runHandler(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "type", e.Type, "panic", r)
		}
	}()
	h(e)
}

// Subscribe registers a handler for one event type. Handlers registered
// after an event is published do not see that event.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish stamps the event with an ID and timestamp and dispatches it to
// all handlers for its type. Publish never blocks the caller: if the worker
// queue is full, dispatch falls back to a dedicated goroutine.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		select {
		case b.tasks <- task{event: e, handler: h}:
		default:
			go runHandler(h, e)
		}
	}
}

// Close stops the dispatch workers. Events published after Close may be
// dropped.
func (b *Bus) Close() {
	b.cancel()
	b.wg.Wait()
}
