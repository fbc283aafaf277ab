package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// CONVERSATION EVENTS
// =============================================================================

type ConversationCreatedPayload struct {
	Title string `json:"title,omitempty"`
}

func (ConversationCreatedPayload) EventType() EventType { return EventConversationCreated }

type MessageAppendedPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (MessageAppendedPayload) EventType() EventType { return EventMessageAppended }

type ProfileUpdatedPayload struct {
	UpdatedKeys  []string `json:"updated_keys,omitempty"`
	NotesChanged bool     `json:"notes_changed,omitempty"`
}

func (ProfileUpdatedPayload) EventType() EventType { return EventProfileUpdated }

// =============================================================================
// FOLLOW-UP WORKFLOW EVENTS
// =============================================================================

type FollowUpScheduledPayload struct {
	Fingerprint string        `json:"fingerprint"`
	Delay       time.Duration `json:"delay"`
}

func (FollowUpScheduledPayload) EventType() EventType { return EventFollowUpScheduled }

type FollowUpCompletedPayload struct {
	Fingerprint string `json:"fingerprint"`
}

func (FollowUpCompletedPayload) EventType() EventType { return EventFollowUpCompleted }

type FollowUpRetryPayload struct {
	Fingerprint string `json:"fingerprint"`
	Retry       int    `json:"retry"`
	Reason      string `json:"reason,omitempty"`
}

func (FollowUpRetryPayload) EventType() EventType { return EventFollowUpRetry }

type FollowUpAbandonedPayload struct {
	Fingerprint string `json:"fingerprint"`
	Reason      string `json:"reason,omitempty"`
}

func (FollowUpAbandonedPayload) EventType() EventType { return EventFollowUpAbandoned }

// =============================================================================
// SCHEDULER EVENTS
// =============================================================================

type DeferredFiredPayload struct {
	EntryID string `json:"entry_id"`
	Handler string `json:"handler"`
}

func (DeferredFiredPayload) EventType() EventType { return EventDeferredFired }

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewTypedEvent creates an event from a typed payload.
func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

// NewTypedEventWithConversation creates an event carrying conversation context.
func NewTypedEventWithConversation(source EventSource, payload EventPayload, conversationID string) Event {
	return Event{
		ID:             generateEventID(),
		ConversationID: conversationID,
		Type:           payload.EventType(),
		Timestamp:      time.Now(),
		Source:         source,
		Payload:        toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// ExtractPayload unmarshals an event's payload back into its typed form.
func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	if result.EventType() != e.Type {
		return result, false
	}
	return result, true
}
