package events

import (
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventFollowUpScheduled)

	bus.Publish(NewTypedEvent("test", FollowUpScheduledPayload{Fingerprint: "fp_1", Delay: 15 * time.Second}))
	bus.Publish(NewTypedEvent("test", MessageAppendedPayload{Role: "user", Content: "hello"}))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventFollowUpScheduled {
		t.Errorf("expected followup.scheduled, got %s", received[0].Type)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	bus.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(NewTypedEvent("test", FollowUpCompletedPayload{Fingerprint: "fp_1"}))
	bus.Publish(NewTypedEvent("test", FollowUpAbandonedPayload{Fingerprint: "fp_2", Reason: "retries exhausted"}))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if count != 2 {
		t.Errorf("expected 2 events, got %d", count)
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Add(NewEvent(EventMessageAppended, "test", map[string]any{"i": i}))
	}

	events := rb.Get(10)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}

func TestExtractPayload(t *testing.T) {
	e := NewTypedEventWithConversation(SourceWorkflow, FollowUpRetryPayload{
		Fingerprint: "fp_9",
		Retry:       1,
		Reason:      "empty output",
	}, "conv_abc123")

	p, ok := ExtractPayload[FollowUpRetryPayload](e)
	if !ok {
		t.Fatal("expected payload to extract")
	}
	if p.Fingerprint != "fp_9" || p.Retry != 1 {
		t.Errorf("payload = %+v, want fingerprint fp_9 retry 1", p)
	}
	if e.ConversationID != "conv_abc123" {
		t.Errorf("ConversationID = %q", e.ConversationID)
	}

	// Mismatched type must not extract.
	if _, ok := ExtractPayload[FollowUpCompletedPayload](e); ok {
		t.Error("expected mismatched payload type to fail extraction")
	}
}
