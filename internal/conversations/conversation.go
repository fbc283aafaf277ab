// Package conversations provides durable per-conversation state for Roam.
package conversations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adelaroche/roam/internal/profile"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Status represents the lifecycle state of a conversation.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// FollowUpStatus represents the lifecycle state of a deferred follow-up.
// Transitions are forward-only; Completed and Abandoned are terminal.
type FollowUpStatus string

const (
	FollowUpScheduled FollowUpStatus = "scheduled"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpAbandoned FollowUpStatus = "abandoned"
)

// Conversation holds metadata about a conversation.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	Status       Status    `json:"status"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single turn in a conversation.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Ts      time.Time `json:"ts"`
}

// FollowUpRecord tracks one deferred follow-up, keyed by fingerprint.
type FollowUpRecord struct {
	Fingerprint string         `json:"fingerprint"`
	Status      FollowUpStatus `json:"status"`
	BaseOutput  string         `json:"base_output"`
	RetryCount  int            `json:"retry_count"`
	CreatedAt   time.Time      `json:"created_at"`
}

// LastResult caches the most recent primary output together with the
// fingerprint of the request that produced it.
type LastResult struct {
	Fingerprint string `json:"fingerprint"`
	Output      string `json:"output"`
}

// State is the mutable durable state of a conversation: preference profile,
// follow-up records keyed by fingerprint, and the last primary result.
// It is loaded, mutated, and written back as a value; no hidden singleton.
type State struct {
	Profile    profile.Profile            `json:"profile"`
	FollowUps  map[string]*FollowUpRecord `json:"followups,omitempty"`
	LastResult *LastResult                `json:"last_result,omitempty"`
}

// FollowUp returns the record for a fingerprint, or nil.
func (s *State) FollowUp(fingerprint string) *FollowUpRecord {
	if s.FollowUps == nil {
		return nil
	}
	return s.FollowUps[fingerprint]
}

// PutFollowUp inserts or replaces a follow-up record.
func (s *State) PutFollowUp(rec *FollowUpRecord) {
	if s.FollowUps == nil {
		s.FollowUps = make(map[string]*FollowUpRecord)
	}
	s.FollowUps[rec.Fingerprint] = rec
}

// Store defines the persistence contract for conversations. Implementations
// provide read-your-writes within a conversation; callers serialize access
// per conversation (single logical writer).
type Store interface {
	Create(ctx context.Context) (*Conversation, error)
	Ensure(ctx context.Context, id string) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context) ([]*Conversation, error)
	Close(ctx context.Context, id string) error

	LoadState(ctx context.Context, id string) (*State, error)
	SaveState(ctx context.Context, id string, state *State) error

	AppendMessage(ctx context.Context, id string, msg Message) error
	LoadMessages(ctx context.Context, id string) ([]Message, error)
}

// GenerateConversationID creates a unique conversation identifier.
func GenerateConversationID() string {
	u := uuid.New().String()
	return "conv_" + strings.ReplaceAll(u[:8], "-", "")
}
