package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor blocks until wg is done or the test times out.
func waitFor(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestBus_DeliversTypedPayload(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(MemorySaved, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: MemorySaved, Data: MemorySavedData{MemoryID: "mem-1", HasImage: true}})
	waitFor(t, &wg)

	if received.Type != MemorySaved {
		t.Errorf("expected MemorySaved, got %v", received.Type)
	}
	data, ok := received.Data.(MemorySavedData)
	if !ok {
		t.Fatalf("expected MemorySavedData payload, got %T", received.Data)
	}
	if data.MemoryID != "mem-1" || !data.HasImage {
		t.Errorf("payload did not round-trip: %+v", data)
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: MemorySaved, Data: nil})
	bus.Publish(Event{Type: MemoryEdited, Data: nil})
	bus.Publish(Event{Type: CacheInvalidated, Data: nil})

	waitFor(t, &wg)
	if atomic.LoadInt32(&count) != 3 {
		t.Errorf("expected 3 events, got %d", count)
	}
}

func TestBus_EventTypeFiltering(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var savedCount, editedCount int32
	var wg sync.WaitGroup
	wg.Add(3)

	bus.Subscribe(MemorySaved, func(e Event) {
		atomic.AddInt32(&savedCount, 1)
		wg.Done()
	})
	bus.Subscribe(MemoryEdited, func(e Event) {
		atomic.AddInt32(&editedCount, 1)
		wg.Done()
	})

	bus.Publish(Event{Type: MemorySaved, Data: nil})
	bus.Publish(Event{Type: MemorySaved, Data: nil})
	bus.Publish(Event{Type: MemoryEdited, Data: nil})

	waitFor(t, &wg)
	if atomic.LoadInt32(&savedCount) != 2 {
		t.Errorf("expected 2 saved events, got %d", savedCount)
	}
	if atomic.LoadInt32(&editedCount) != 1 {
		t.Errorf("expected 1 edited event, got %d", editedCount)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup
	wg.Add(1)
	unsub := bus.Subscribe(MemorySaved, func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})

	bus.Publish(Event{Type: MemorySaved, Data: nil})
	waitFor(t, &wg)

	unsub()
	// Subscription teardown is asynchronous; give it a moment before
	// publishing again.
	time.Sleep(50 * time.Millisecond)

	bus.Publish(Event{Type: MemorySaved, Data: nil})
	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 event after unsubscribe, got %d", count)
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		bus.Subscribe(MemorySaved, func(e Event) {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
	}

	bus.Publish(Event{Type: MemorySaved, Data: nil})

	waitFor(t, &wg)
	if atomic.LoadInt32(&count) != 3 {
		t.Errorf("expected 3 subscribers to receive event, got %d", count)
	}
}

func TestBus_OrderPreservedPerSubscription(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var ids []string
	var wg sync.WaitGroup
	wg.Add(3)

	bus.Subscribe(MemorySaved, func(e Event) {
		data := e.Data.(MemorySavedData)
		mu.Lock()
		ids = append(ids, data.MemoryID)
		mu.Unlock()
		wg.Done()
	})

	for _, id := range []string{"a", "b", "c"} {
		bus.Publish(Event{Type: MemorySaved, Data: MemorySavedData{MemoryID: id}})
	}

	waitFor(t, &wg)
	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("expected publish order [a b c], got %v", ids)
	}
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Should neither panic nor block with no subscribers.
	bus.Publish(Event{Type: MemorySaved, Data: nil})
}

func TestBus_PublishAfterCloseIsNoOp(t *testing.T) {
	bus := NewBus()
	bus.Close()
	bus.Publish(Event{Type: MemorySaved, Data: nil})
}

func TestGlobalBus_Reset(t *testing.T) {
	var count int32
	var wg sync.WaitGroup
	wg.Add(1)
	Subscribe(MemorySaved, func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})

	Publish(Event{Type: MemorySaved, Data: nil})
	waitFor(t, &wg)

	Reset()

	Publish(Event{Type: MemorySaved, Data: nil})
	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 event after reset, got %d", count)
	}
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(MemorySaved, func(e Event) {
				atomic.AddInt32(&count, 1)
			})
			defer unsub()

			for j := 0; j < 10; j++ {
				bus.Publish(Event{Type: MemorySaved, Data: nil})
			}
		}()
	}

	wg.Wait()
	// Just verify no panic/deadlock occurred; delivery counts depend on
	// subscribe/publish interleaving.
	time.Sleep(100 * time.Millisecond)
}
