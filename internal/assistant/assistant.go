// Package assistant orchestrates a conversation turn: persist the user
// message, produce the primary reply, and hand the exchange to the follow-up
// workflow.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adelaroche/roam/internal/conversations"
	"github.com/adelaroche/roam/internal/events"
	"github.com/adelaroche/roam/internal/followup"
	"github.com/adelaroche/roam/internal/profile"
)

// DefaultPersona is the Roam system prompt. It keeps replies focused on
// trip planning so the downstream classifier sees consistent requests.
const DefaultPersona = `You are Roam, a travel planning assistant. You help travelers shape
itineraries: destinations, day-by-day plans, pacing, food, and transit. Answer
concretely and keep the plan readable at a glance. When the traveler has stored
preferences, honor them without restating them back.`

// Generator produces the primary reply text.
type Generator interface {
	Generate(ctx context.Context, system, prompt, contextInfo string) (string, error)
}

// Assistant ties the conversation store, the model, and the follow-up
// workflow together. All per-conversation mutation goes through the shared
// lock set so deferred invocations never interleave with live turns.
type Assistant struct {
	store    conversations.Store
	locks    *conversations.Locks
	gen      Generator
	workflow *followup.Workflow
	bus      *events.Bus
	persona  string
}

// Config holds the assistant's dependencies.
type Config struct {
	Store     conversations.Store
	Locks     *conversations.Locks
	Generator Generator
	Workflow  *followup.Workflow
	Bus       *events.Bus
	Persona   string // empty = DefaultPersona
}

// New creates an Assistant.
func New(cfg Config) *Assistant {
	a := &Assistant{
		store:    cfg.Store,
		locks:    cfg.Locks,
		gen:      cfg.Generator,
		workflow: cfg.Workflow,
		bus:      cfg.Bus,
		persona:  cfg.Persona,
	}
	if a.locks == nil {
		a.locks = conversations.NewLocks()
	}
	if a.persona == "" {
		a.persona = DefaultPersona
	}
	return a
}

// HandleMessage processes one user turn and returns the assistant's reply.
// The conversation is created on first use. After the reply is persisted the
// follow-up workflow decides whether to schedule a deferred alternative.
func (a *Assistant) HandleMessage(ctx context.Context, conversationID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty message")
	}

	if _, err := a.store.Ensure(ctx, conversationID); err != nil {
		return "", fmt.Errorf("ensure conversation: %w", err)
	}

	unlock := a.locks.Lock(conversationID)

	state, err := a.store.LoadState(ctx, conversationID)
	if err != nil {
		unlock()
		return "", fmt.Errorf("load state: %w", err)
	}
	contextInfo := state.Profile.Render()

	userMsg := conversations.Message{Role: "user", Content: text, Ts: time.Now()}
	if err := a.store.AppendMessage(ctx, conversationID, userMsg); err != nil {
		unlock()
		return "", fmt.Errorf("append user message: %w", err)
	}
	a.publish(conversationID, events.MessageAppendedPayload{Role: "user", Content: text})

	// The model call runs outside the lock: generation can take a while and
	// deferred fires for other fingerprints must not starve.
	unlock()

	reply, err := a.gen.Generate(ctx, a.persona, text, contextInfo)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)

	if reply != "" {
		unlock = a.locks.Lock(conversationID)
		assistantMsg := conversations.Message{Role: "assistant", Content: reply, Ts: time.Now()}
		if err := a.store.AppendMessage(ctx, conversationID, assistantMsg); err != nil {
			unlock()
			return "", fmt.Errorf("append reply: %w", err)
		}
		unlock()
		a.publish(conversationID, events.MessageAppendedPayload{Role: "assistant", Content: reply})
	}

	if a.workflow != nil {
		if err := a.workflow.OnPrimaryProduced(ctx, conversationID, text, reply); err != nil {
			// The reply already reached the traveler; a scheduling failure
			// must not turn the turn into an error.
			slog.Error("assistant: follow-up scheduling failed", "conversation", conversationID, "error", err)
		}
	}

	return reply, nil
}

// UpsertPreferences merges a preference delta into the conversation profile
// and returns an acknowledgment naming what changed. Keys absent from the
// delta are left untouched.
func (a *Assistant) UpsertPreferences(ctx context.Context, conversationID string, delta map[string]any, notes string) (profile.Ack, error) {
	if _, err := a.store.Ensure(ctx, conversationID); err != nil {
		return profile.Ack{}, fmt.Errorf("ensure conversation: %w", err)
	}

	unlock := a.locks.Lock(conversationID)
	defer unlock()

	state, err := a.store.LoadState(ctx, conversationID)
	if err != nil {
		return profile.Ack{}, fmt.Errorf("load state: %w", err)
	}

	ack := state.Profile.Merge(delta, notes)
	if len(ack.UpdatedKeys) == 0 && !ack.NotesChanged {
		return ack, nil
	}

	if err := a.store.SaveState(ctx, conversationID, state); err != nil {
		return profile.Ack{}, fmt.Errorf("save state: %w", err)
	}

	a.publish(conversationID, events.ProfileUpdatedPayload{
		UpdatedKeys:  ack.UpdatedKeys,
		NotesChanged: ack.NotesChanged,
	})
	slog.Info("assistant: preferences updated", "conversation", conversationID, "keys", ack.UpdatedKeys)
	return ack, nil
}

// Profile returns the current preference profile for a conversation.
func (a *Assistant) Profile(ctx context.Context, conversationID string) (profile.Profile, error) {
	state, err := a.store.LoadState(ctx, conversationID)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("load state: %w", err)
	}
	return state.Profile, nil
}

func (a *Assistant) publish(conversationID string, payload events.EventPayload) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(events.NewTypedEventWithConversation(events.SourceAssistant, payload, conversationID))
}
