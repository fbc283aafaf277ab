package conversations

import "sync"

// Locks serializes operations against a single conversation's state.
// The hosting model guarantees one logical event at a time per conversation;
// Locks enforces that across the message path, the preference path, and the
// deferred runner. Conversations are independent of each other.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for a conversation and returns the unlock function.
func (l *Locks) Lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
