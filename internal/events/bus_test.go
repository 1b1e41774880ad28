package events

import (
	"testing"

	"github.com/dohr-michael/ralph-tui/internal/task"
)

func TestBusPublishSubscribeFiltered(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var received []Event
	bus.Subscribe(func(e Event) {
		received = append(received, e)
	}, EventTaskSelected)

	bus.Publish(New(EventTaskSelected, "s1", TaskSelectedPayload{Iteration: 1}))
	bus.Publish(New(EventIterationStarted, "s1", IterationStartedPayload{Iteration: 1}))

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventTaskSelected {
		t.Errorf("expected task:selected, got %s", received[0].Type)
	}
}

func TestBusOrderedSynchronousDelivery(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var orderA, orderB []EventType
	bus.Subscribe(func(e Event) { orderA = append(orderA, e.Type) })
	bus.Subscribe(func(e Event) { orderB = append(orderB, e.Type) })

	bus.Publish(New(EventTaskSelected, "", nil))
	bus.Publish(New(EventIterationStarted, "", nil))
	bus.Publish(New(EventIterationCompleted, "", nil))

	want := []EventType{EventTaskSelected, EventIterationStarted, EventIterationCompleted}
	for i, w := range want {
		if orderA[i] != w || orderB[i] != w {
			t.Fatalf("subscriber order mismatch at %d: A=%v B=%v want %v", i, orderA, orderB, want)
		}
	}
}

func TestBusSubscriberPanicDoesNotStopOthers(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	bus.Subscribe(func(Event) { panic("boom") })

	var observed bool
	bus.Subscribe(func(Event) { observed = true })

	bus.Publish(New(EventTaskSelected, "", nil))

	if !observed {
		t.Fatal("second subscriber should have observed the event despite the first panicking")
	}
}

func TestBusUnsubscribeIdempotent(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	count := 0
	unsub := bus.Subscribe(func(Event) { count++ })

	bus.Publish(New(EventTaskSelected, "", nil))
	unsub()
	unsub() // idempotent
	bus.Publish(New(EventTaskSelected, "", nil))

	if count != 1 {
		t.Fatalf("expected 1 delivery before unsubscribe, got %d", count)
	}
}

func TestBusClosedDropsPublish(t *testing.T) {
	bus := NewBus(64)
	count := 0
	bus.Subscribe(func(Event) { count++ })
	bus.Close()
	bus.Publish(New(EventTaskSelected, "", nil))
	if count != 0 {
		t.Fatalf("expected no delivery after Close, got %d", count)
	}
}

func TestRingBufferWrapsAndReturnsMostRecent(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Add(Event{Type: EventTaskSelected, Payload: TaskSelectedPayload{Iteration: i}})
	}
	got := rb.Get(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	last := got[len(got)-1].Payload.(TaskSelectedPayload)
	if last.Iteration != 4 {
		t.Fatalf("expected last iteration 4, got %d", last.Iteration)
	}
}

func TestEventSequenceForCompletedTask(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var seq []EventType
	bus.Subscribe(func(e Event) { seq = append(seq, e.Type) })

	tsk := task.Task{ID: "t1", Title: "demo", Status: task.StatusCompleted}
	bus.Publish(New(EventTaskSelected, "s1", TaskSelectedPayload{Task: tsk, Iteration: 1}))
	bus.Publish(New(EventIterationStarted, "s1", IterationStartedPayload{Iteration: 1, Task: tsk}))
	bus.Publish(New(EventAgentOutput, "s1", AgentOutputPayload{Stream: StreamStdout, Data: "ok"}))
	bus.Publish(New(EventIterationCompleted, "s1", IterationCompletedPayload{}))
	bus.Publish(New(EventTaskCompleted, "s1", TaskCompletedPayload{TaskID: "t1", Iteration: 1}))

	want := []EventType{EventTaskSelected, EventIterationStarted, EventAgentOutput, EventIterationCompleted, EventTaskCompleted}
	if len(seq) != len(want) {
		t.Fatalf("got %v want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("at %d: got %s want %s", i, seq[i], want[i])
		}
	}
}
