package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(2, 16)
	defer bus.Close()

	got := make(chan Event, 1)
	bus.Subscribe(BrowserCreated, func(e Event) { got <- e })

	bus.Publish(Event{Type: BrowserCreated, BrowserID: "b1"})

	select {
	case e := <-got:
		if e.BrowserID != "b1" {
			t.Errorf("BrowserID = %q, want b1", e.BrowserID)
		}
		if e.ID == "" {
			t.Error("event ID not stamped")
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishIgnoresOtherTypes(t *testing.T) {
	bus := NewBus(2, 16)
	defer bus.Close()

	var calls atomic.Int32
	bus.Subscribe(OperationEnd, func(Event) { calls.Add(1) })

	bus.Publish(Event{Type: OperationStart})
	bus.Publish(Event{Type: Error})
	time.Sleep(50 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times for unsubscribed types", n)
	}
}

func TestPublishFansOut(t *testing.T) {
	bus := NewBus(2, 16)
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		bus.Subscribe(PageCreated, func(Event) { wg.Done() })
	}

	bus.Publish(Event{Type: PageCreated})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all handlers received the event")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	// One worker, tiny buffer, and a handler that stalls. Publish must
	// still return promptly via the fallback goroutine path.
	bus := NewBus(1, 1)
	defer bus.Close()

	release := make(chan struct{})
	var seen atomic.Int32
	bus.Subscribe(Error, func(Event) {
		seen.Add(1)
		<-release
	})

	start := time.Now()
	for i := 0; i < 10; i++ {
		bus.Publish(Event{Type: Error})
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Publish blocked for %s", elapsed)
	}
	close(release)

	deadline := time.Now().Add(time.Second)
	for seen.Load() < 10 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := seen.Load(); n != 10 {
		t.Errorf("delivered %d of 10 events", n)
	}
}

func TestHandlerPanicDoesNotKillWorkers(t *testing.T) {
	bus := NewBus(1, 16)
	defer bus.Close()

	got := make(chan struct{}, 1)
	bus.Subscribe(OperationEnd, func(Event) { panic("handler bug") })
	bus.Subscribe(OperationEnd, func(Event) { got <- struct{}{} })

	bus.Publish(Event{Type: OperationEnd})

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("worker died after handler panic")
	}
}
