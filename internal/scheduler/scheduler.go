package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adelaroche/roam/internal/events"
)

// DefaultTick is the resolution of the due-entry check loop.
const DefaultTick = time.Second

// HandlerFunc is invoked when a deferred entry comes due. Handlers must
// absorb their own failures; a returned error is logged, never retried here.
type HandlerFunc func(ctx context.Context, conversationID, payload string) error

// Config holds dependencies for the scheduler.
type Config struct {
	Store *EntryStore // nil-safe: entries are not persisted without a store
	Bus   *events.Bus
	Tick  time.Duration // 0 = DefaultTick
}

// Scheduler delivers deferred invocations to named handlers after a delay.
type Scheduler struct {
	store *EntryStore
	bus   *events.Bus
	tick  time.Duration

	mu       sync.Mutex
	entries  map[string]*Entry
	handlers map[string]HandlerFunc

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	tick := cfg.Tick
	if tick == 0 {
		tick = DefaultTick
	}
	return &Scheduler{
		store:    cfg.Store,
		bus:      cfg.Bus,
		tick:     tick,
		entries:  make(map[string]*Entry),
		handlers: make(map[string]HandlerFunc),
		done:     make(chan struct{}),
	}
}

// Register binds a handler name to a function. Must be called before Start.
func (s *Scheduler) Register(name string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = fn
}

// Start recovers persisted entries and begins the dispatch loop.
func (s *Scheduler) Start() {
	s.loadPersistedEntries()

	slog.Info("scheduler started", "pending", len(s.entries))

	s.wg.Add(1)
	go s.loop()
}

// Stop halts the dispatch loop. In-flight dispatches finish first.
func (s *Scheduler) Stop() {
	close(s.done)
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

// Enqueue schedules a deferred invocation of the named handler after delay.
func (s *Scheduler) Enqueue(conversationID string, delay time.Duration, handler, payload string) error {
	s.mu.Lock()
	_, known := s.handlers[handler]
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown handler: %s", handler)
	}

	entry := &Entry{
		ID:             GenerateEntryID(),
		ConversationID: conversationID,
		Handler:        handler,
		Payload:        payload,
		DueAt:          time.Now().Add(delay),
		CreatedAt:      time.Now(),
	}

	if s.store != nil {
		if err := s.store.Create(entry); err != nil {
			return fmt.Errorf("persist deferred entry: %w", err)
		}
	}

	s.mu.Lock()
	s.entries[entry.ID] = entry
	s.mu.Unlock()

	slog.Info("scheduler: enqueued", "id", entry.ID, "handler", handler,
		"conversation", conversationID, "due_at", entry.DueAt)
	return nil
}

// Pending returns a snapshot of queued entries sorted by due time.
func (s *Scheduler) Pending() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		copied := *e
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueAt.Before(result[j].DueAt) })
	return result
}

// loadPersistedEntries recovers pending entries from the store (if available).
// Entries that came due while the process was down fire on the first tick.
func (s *Scheduler) loadPersistedEntries() {
	if s.store == nil {
		return
	}

	entries, err := s.store.List()
	if err != nil {
		slog.Warn("scheduler: failed to load persisted entries", "error", err)
		return
	}

	for _, e := range entries {
		s.entries[e.ID] = e
		slog.Info("scheduler: recovered entry", "id", e.ID, "handler", e.Handler, "due_at", e.DueAt)
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.dispatchDue(now)
		}
	}
}

// dispatchDue fires every entry whose DueAt has passed. Dispatch is
// sequential: entries against the same conversation never run concurrently
// from here.
func (s *Scheduler) dispatchDue(now time.Time) {
	s.mu.Lock()
	var due []*Entry
	for _, e := range s.entries {
		if !e.DueAt.After(now) {
			due = append(due, e)
		}
	}
	for _, e := range due {
		delete(s.entries, e.ID)
	}
	handlers := s.handlers
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })

	for _, e := range due {
		s.dispatch(handlers, e)
	}
}

func (s *Scheduler) dispatch(handlers map[string]HandlerFunc, e *Entry) {
	fn, ok := handlers[e.Handler]
	if !ok {
		// A persisted entry can outlive its handler registration.
		slog.Warn("scheduler: no handler for entry, dropping", "id", e.ID, "handler", e.Handler)
		if s.store != nil {
			s.removePersisted(e.ID)
		}
		return
	}

	if s.store != nil {
		if err := s.store.AppendAttempt(e.ID, AttemptRecord{Ts: time.Now()}); err != nil {
			slog.Warn("scheduler: journal attempt", "id", e.ID, "error", err)
		}
	}

	err := fn(context.Background(), e.ConversationID, e.Payload)
	if err != nil {
		slog.Error("scheduler: handler failed", "id", e.ID, "handler", e.Handler, "error", err)
	}

	// Remove only after dispatch returned: a crash mid-handler re-delivers
	// on restart (at-least-once).
	if s.store != nil {
		s.removePersisted(e.ID)
	}

	if s.bus != nil {
		s.bus.Publish(events.NewTypedEventWithConversation(events.SourceScheduler, events.DeferredFiredPayload{
			EntryID: e.ID,
			Handler: e.Handler,
		}, e.ConversationID))
	}

	slog.Info("scheduler: dispatched", "id", e.ID, "handler", e.Handler, "conversation", e.ConversationID)
}

func (s *Scheduler) removePersisted(id string) {
	if err := s.store.Delete(id); err != nil {
		slog.Warn("scheduler: failed to delete persisted entry", "id", id, "error", err)
	}
}
