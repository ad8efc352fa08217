package event

import (
	"sync"
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	called := false
	id := bus.Subscribe(TopicTaskCompleted, func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}

	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}

	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe(TopicTaskCompleted, func(e Event) {
		received = e
	})

	bus.Publish(NewTaskCompletedEvent("t-1", "claude", 1, time.Second))

	if received == nil {
		t.Fatal("handler should have received the event")
	}
	if received.EventType() != TopicTaskCompleted {
		t.Errorf("expected event type %q, got %q", TopicTaskCompleted, received.EventType())
	}
}

func TestBus_PublishMultipleHandlers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	callCount := 0
	inc := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
	}
	bus.Subscribe(TopicTaskFailed, inc)
	bus.Subscribe(TopicTaskFailed, inc)

	bus.Publish(NewTaskFailedEvent("t-2", "codex", 1, "crash", "boom"))

	if callCount != 2 {
		t.Errorf("expected 2 calls, got %d", callCount)
	}
}

func TestBus_SubscribeAllReceivesEveryEvent(t *testing.T) {
	bus := NewBus()

	var seen []string
	bus.SubscribeAll(func(e Event) {
		seen = append(seen, e.EventType())
	})

	bus.Publish(NewCycleStartedEvent(1))
	bus.Publish(NewTaskCompletedEvent("t-3", "gemini", 1, time.Millisecond))

	if len(seen) != 2 {
		t.Fatalf("expected 2 events delivered to wildcard handler, got %d", len(seen))
	}
}

func TestBus_SpecificHandlersBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(TopicTaskCompleted, func(e Event) { order = append(order, "specific") })
	bus.SubscribeAll(func(e Event) { order = append(order, "wildcard") })

	bus.Publish(NewTaskCompletedEvent("t-4", "claude", 1, 0))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("expected [specific wildcard], got %v", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	called := false
	id := bus.Subscribe(TopicTaskCompleted, func(e Event) { called = true })

	if !bus.Unsubscribe(id) {
		t.Fatal("expected Unsubscribe to report success for a known id")
	}
	if bus.Unsubscribe(id) {
		t.Error("expected second Unsubscribe of the same id to report failure")
	}

	bus.Publish(NewTaskCompletedEvent("t-5", "claude", 1, 0))
	if called {
		t.Error("handler should not fire after unsubscribing")
	}
}

func TestBus_PanicIsolatedFromOtherHandlers(t *testing.T) {
	bus := NewBus()

	secondCalled := false
	bus.Subscribe(TopicTaskFailed, func(e Event) { panic("boom") })
	bus.Subscribe(TopicTaskFailed, func(e Event) { secondCalled = true })

	bus.Publish(NewTaskFailedEvent("t-6", "claude", 1, "crash", "boom"))

	if !secondCalled {
		t.Error("a panicking handler must not prevent delivery to subsequent handlers")
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TopicTaskCompleted, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("expected 0 subscriptions after Clear, got %d", bus.SubscriptionCount())
	}
}
