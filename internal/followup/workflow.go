package followup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adelaroche/roam/internal/conversations"
	"github.com/adelaroche/roam/internal/events"
)

// HandlerName is the deferred scheduler handler the workflow registers under.
const HandlerName = "followup.generate"

const (
	// DefaultDelay is the wait before the first deferred attempt.
	DefaultDelay = 15 * time.Second
	// DefaultRetryDelay is the shorter wait before the single retry.
	DefaultRetryDelay = 10 * time.Second
	// DefaultMaxRetries bounds retry at one extra attempt.
	DefaultMaxRetries = 1
)

const alternativeSystem = `You are Roam, a travel planning assistant. ` +
	`Given an itinerary you previously produced, craft one distinctly different ` +
	`alternative: vary the neighborhoods, pace, or theme while keeping the same ` +
	`destination and duration. Answer with the alternative itinerary only.`

// Deferrer enqueues a deferred invocation of a named handler.
// Delivery is at-least-once; duplicate fires are absorbed by the guard.
type Deferrer interface {
	Enqueue(conversationID string, delay time.Duration, handler, payload string) error
}

// Generator produces the alternative text. An error or empty output is a
// transient failure for retry purposes.
type Generator interface {
	Generate(ctx context.Context, system, prompt, contextInfo string) (string, error)
}

// Config holds dependencies for the workflow.
type Config struct {
	Store     conversations.Store
	Locks     *conversations.Locks
	Deferrer  Deferrer
	Generator Generator
	Bus       *events.Bus

	Delay      time.Duration // 0 = DefaultDelay
	RetryDelay time.Duration // 0 = DefaultRetryDelay
	MaxRetries int           // 0 = DefaultMaxRetries
}

// Workflow guards scheduling, execution, and retry of deferred follow-ups.
// Per fingerprint: no record → scheduled → completed | abandoned, forward
// only, at most one emitted message.
type Workflow struct {
	store      conversations.Store
	locks      *conversations.Locks
	deferrer   Deferrer
	generator  Generator
	bus        *events.Bus
	delay      time.Duration
	retryDelay time.Duration
	maxRetries int
}

// New creates a Workflow with defaults applied.
func New(cfg Config) *Workflow {
	w := &Workflow{
		store:      cfg.Store,
		locks:      cfg.Locks,
		deferrer:   cfg.Deferrer,
		generator:  cfg.Generator,
		bus:        cfg.Bus,
		delay:      cfg.Delay,
		retryDelay: cfg.RetryDelay,
		maxRetries: cfg.MaxRetries,
	}
	if w.locks == nil {
		w.locks = conversations.NewLocks()
	}
	if w.delay == 0 {
		w.delay = DefaultDelay
	}
	if w.retryDelay == 0 {
		w.retryDelay = DefaultRetryDelay
	}
	if w.maxRetries == 0 {
		w.maxRetries = DefaultMaxRetries
	}
	return w
}

// OnPrimaryProduced runs after a primary result has been generated for
// triggeringText. If the text is a follow-up candidate and no record exists
// for its fingerprint yet, it stores a scheduled record and enqueues the
// deferred invocation. Re-asking the same question is a no-op.
func (w *Workflow) OnPrimaryProduced(ctx context.Context, conversationID, triggeringText, primaryOutput string) error {
	if !IsFollowUpCandidate(triggeringText) {
		return nil
	}
	if strings.TrimSpace(primaryOutput) == "" {
		// Nothing to condition the alternative on.
		return nil
	}

	fp := Fingerprint(triggeringText)

	unlock := w.locks.Lock(conversationID)
	defer unlock()

	state, err := w.store.LoadState(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	if state.FollowUp(fp) != nil {
		slog.Debug("followup: duplicate request suppressed", "conversation", conversationID, "fingerprint", fp)
		return nil
	}

	state.PutFollowUp(&conversations.FollowUpRecord{
		Fingerprint: fp,
		Status:      conversations.FollowUpScheduled,
		BaseOutput:  primaryOutput,
		CreatedAt:   time.Now(),
	})
	state.LastResult = &conversations.LastResult{Fingerprint: fp, Output: primaryOutput}

	if err := w.store.SaveState(ctx, conversationID, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if err := w.deferrer.Enqueue(conversationID, w.delay, HandlerName, EncodePayload(fp, 0)); err != nil {
		return fmt.Errorf("enqueue followup: %w", err)
	}

	w.publish(conversationID, events.FollowUpScheduledPayload{Fingerprint: fp, Delay: w.delay})
	slog.Info("followup: scheduled", "conversation", conversationID, "fingerprint", fp, "delay", w.delay)
	return nil
}

// OnDeferredInvoke runs when a deferred invocation fires. It re-validates the
// guard, generates the alternative, and commits exactly once per fingerprint.
// Stale, terminal, or mismatched records are silent no-ops.
func (w *Workflow) OnDeferredInvoke(ctx context.Context, conversationID, fingerprint string, retry int) error {
	unlock := w.locks.Lock(conversationID)
	defer unlock()

	state, err := w.store.LoadState(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	rec := state.FollowUp(fingerprint)
	if rec == nil || rec.Status != conversations.FollowUpScheduled {
		slog.Debug("followup: stale invocation ignored", "conversation", conversationID, "fingerprint", fingerprint)
		return nil
	}
	if rec.BaseOutput == "" || rec.Fingerprint != fingerprint {
		slog.Debug("followup: base output missing or mismatched", "conversation", conversationID, "fingerprint", fingerprint)
		return nil
	}

	prompt := buildAlternativePrompt(rec.BaseOutput)
	output, genErr := w.generator.Generate(ctx, alternativeSystem, prompt, state.Profile.Render())
	output = strings.TrimSpace(output)

	if genErr != nil || output == "" {
		reason := "empty output"
		if genErr != nil {
			reason = genErr.Error()
		}
		return w.handleFailure(ctx, conversationID, state, rec, reason)
	}

	// Flip the guard to terminal before emitting: a duplicate delivery that
	// observes the record now sees completed and no-ops. The window between
	// this write and the emit is the accepted at-most-once tradeoff.
	rec.Status = conversations.FollowUpCompleted
	if err := w.store.SaveState(ctx, conversationID, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	msg := conversations.Message{Role: "assistant", Content: output, Ts: time.Now()}
	if err := w.store.AppendMessage(ctx, conversationID, msg); err != nil {
		// Record is already terminal: losing the message beats emitting twice.
		return fmt.Errorf("append alternative: %w", err)
	}

	w.publish(conversationID, events.FollowUpCompletedPayload{Fingerprint: fingerprint})
	slog.Info("followup: completed", "conversation", conversationID, "fingerprint", fingerprint)
	return nil
}

// handleFailure either schedules the single bounded retry or abandons.
func (w *Workflow) handleFailure(ctx context.Context, conversationID string, state *conversations.State, rec *conversations.FollowUpRecord, reason string) error {
	if rec.RetryCount < w.maxRetries {
		rec.RetryCount++
		if err := w.store.SaveState(ctx, conversationID, state); err != nil {
			return fmt.Errorf("save retry state: %w", err)
		}
		if err := w.deferrer.Enqueue(conversationID, w.retryDelay, HandlerName, EncodePayload(rec.Fingerprint, rec.RetryCount)); err != nil {
			return fmt.Errorf("enqueue retry: %w", err)
		}
		w.publish(conversationID, events.FollowUpRetryPayload{Fingerprint: rec.Fingerprint, Retry: rec.RetryCount, Reason: reason})
		slog.Warn("followup: generation failed, retrying", "conversation", conversationID,
			"fingerprint", rec.Fingerprint, "retry", rec.RetryCount, "reason", reason)
		return nil
	}

	rec.Status = conversations.FollowUpAbandoned
	if err := w.store.SaveState(ctx, conversationID, state); err != nil {
		return fmt.Errorf("save abandoned state: %w", err)
	}
	w.publish(conversationID, events.FollowUpAbandonedPayload{Fingerprint: rec.Fingerprint, Reason: reason})
	slog.Warn("followup: abandoned", "conversation", conversationID, "fingerprint", rec.Fingerprint, "reason", reason)
	return nil
}

func (w *Workflow) publish(conversationID string, payload events.EventPayload) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(events.NewTypedEventWithConversation(events.SourceWorkflow, payload, conversationID))
}

func buildAlternativePrompt(baseOutput string) string {
	return "Here is the itinerary you previously produced:\n\n" + baseOutput +
		"\n\nPropose one alternative version."
}
