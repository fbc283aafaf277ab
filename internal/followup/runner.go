package followup

import (
	"context"
	"encoding/json"
	"log/slog"
)

// invokePayload is the wire format carried through the deferred scheduler.
type invokePayload struct {
	Fingerprint string `json:"fingerprint"`
	Retry       int    `json:"retry,omitempty"`
}

// EncodePayload builds the scheduler payload for a deferred invocation.
func EncodePayload(fingerprint string, retry int) string {
	data, _ := json.Marshal(invokePayload{Fingerprint: fingerprint, Retry: retry})
	return string(data)
}

// Runner adapts scheduler dispatches into workflow invocations. It tolerates
// malformed payloads and absorbs every failure: nothing here may propagate
// back to the scheduler.
type Runner struct {
	workflow *Workflow
}

// NewRunner creates a Runner for the given workflow.
func NewRunner(workflow *Workflow) *Runner {
	return &Runner{workflow: workflow}
}

// Handle is the scheduler HandlerFunc for HandlerName.
func (r *Runner) Handle(ctx context.Context, conversationID, payload string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("followup runner: panic recovered", "conversation", conversationID, "panic", rec)
		}
		err = nil
	}()

	var p invokePayload
	if unmarshalErr := json.Unmarshal([]byte(payload), &p); unmarshalErr != nil || p.Fingerprint == "" {
		// Malformed or legacy payload: default to doing nothing.
		slog.Warn("followup runner: unusable payload ignored", "conversation", conversationID, "payload", payload)
		return nil
	}

	if invokeErr := r.workflow.OnDeferredInvoke(ctx, conversationID, p.Fingerprint, p.Retry); invokeErr != nil {
		slog.Error("followup runner: invocation failed", "conversation", conversationID,
			"fingerprint", p.Fingerprint, "error", invokeErr)
	}
	return nil
}
