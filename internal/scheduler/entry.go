// Package scheduler provides deferred delivery of named-handler invocations.
//
// An entry is a promise to invoke a registered handler with an opaque payload
// after a delay. Entries are persisted so pending invocations survive a
// restart; delivery is at-least-once (an entry is only removed after its
// dispatch returns).
package scheduler

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is a single pending deferred invocation.
type Entry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Handler        string    `json:"handler"`
	Payload        string    `json:"payload"`
	DueAt          time.Time `json:"due_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// AttemptRecord is one dispatch attempt, journaled before the handler runs.
type AttemptRecord struct {
	Ts    time.Time `json:"ts"`
	Error string    `json:"error,omitempty"`
}

// GenerateEntryID creates a unique deferred entry identifier.
func GenerateEntryID() string {
	u := uuid.New().String()
	return "def_" + strings.ReplaceAll(u[:8], "-", "")
}
