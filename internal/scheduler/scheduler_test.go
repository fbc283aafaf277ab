package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adelaroche/roam/internal/events"
)

// recorder collects handler invocations.
type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recorder) handle(ctx context.Context, conversationID, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, conversationID+"|"+payload)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestEnqueueUnknownHandler(t *testing.T) {
	s := New(Config{Tick: 10 * time.Millisecond})

	err := s.Enqueue("conv_1", time.Second, "nope", "{}")
	if err == nil {
		t.Fatal("expected error for unknown handler")
	}
}

func TestDispatchAfterDelay(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()

	rec := &recorder{}
	s := New(Config{Bus: bus, Tick: 10 * time.Millisecond})
	s.Register("followup", rec.handle)
	s.Start()
	defer s.Stop()

	if err := s.Enqueue("conv_1", 20*time.Millisecond, "followup", `{"fingerprint":"fp_1"}`); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if len(s.Pending()) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(s.Pending()))
	}

	waitFor(t, time.Second, func() bool { return rec.count() == 1 })

	rec.mu.Lock()
	got := rec.calls[0]
	rec.mu.Unlock()
	if got != `conv_1|{"fingerprint":"fp_1"}` {
		t.Errorf("call = %q", got)
	}

	if len(s.Pending()) != 0 {
		t.Errorf("expected no pending entries after dispatch")
	}
}

func TestHandlerErrorStillConsumesEntry(t *testing.T) {
	rec := &recorder{err: errors.New("boom")}
	s := New(Config{Tick: 10 * time.Millisecond})
	s.Register("followup", rec.handle)
	s.Start()
	defer s.Stop()

	if err := s.Enqueue("conv_1", 0, "followup", "{}"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, time.Second, func() bool { return rec.count() == 1 })

	// No internal retry: the entry fires exactly once.
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("expected exactly 1 call, got %d", rec.count())
	}
}

func TestPersistedEntriesRecovered(t *testing.T) {
	dir := t.TempDir()
	store := NewEntryStore(dir)

	first := New(Config{Store: store, Tick: 10 * time.Millisecond})
	first.Register("followup", (&recorder{}).handle)
	if err := first.Enqueue("conv_1", time.Hour, "followup", `{"fingerprint":"fp_9"}`); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Not started; simulates a process that died before the entry came due.

	persisted, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", len(persisted))
	}

	rec := &recorder{}
	second := New(Config{Store: NewEntryStore(dir), Tick: 10 * time.Millisecond})
	second.Register("followup", rec.handle)
	second.Start()
	defer second.Stop()

	pending := second.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 recovered entry, got %d", len(pending))
	}
	if pending[0].Payload != `{"fingerprint":"fp_9"}` {
		t.Errorf("recovered payload = %q", pending[0].Payload)
	}
}

func TestOverdueEntryFiresOnRecovery(t *testing.T) {
	dir := t.TempDir()
	store := NewEntryStore(dir)

	// Persist an entry that is already due.
	entry := &Entry{
		ConversationID: "conv_1",
		Handler:        "followup",
		Payload:        "{}",
		DueAt:          time.Now().Add(-time.Minute),
	}
	if err := store.Create(entry); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := &recorder{}
	s := New(Config{Store: NewEntryStore(dir), Tick: 10 * time.Millisecond})
	s.Register("followup", rec.handle)
	s.Start()
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return rec.count() == 1 })

	// Consumed entry is removed from disk.
	persisted, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(persisted) != 0 {
		t.Errorf("expected no persisted entries, got %d", len(persisted))
	}
}

func TestAttemptJournal(t *testing.T) {
	store := NewEntryStore(t.TempDir())

	entry := &Entry{ConversationID: "conv_1", Handler: "followup", Payload: "{}", DueAt: time.Now()}
	if err := store.Create(entry); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.AppendAttempt(entry.ID, AttemptRecord{Ts: time.Now()}); err != nil {
		t.Fatalf("AppendAttempt: %v", err)
	}

	attempts, err := store.LoadAttempts(entry.ID)
	if err != nil {
		t.Fatalf("LoadAttempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(attempts))
	}
}
