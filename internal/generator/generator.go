// Package generator produces assistant text through a configured chat model.
// It wraps the eino model abstraction behind a small prompt-in, text-out
// surface so callers never deal with message schemas directly.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatGenerator turns (system, prompt, context) triples into a single
// completion using an eino chat model.
type ChatGenerator struct {
	model model.BaseChatModel
}

// New wraps a chat model.
func New(m model.BaseChatModel) *ChatGenerator {
	return &ChatGenerator{model: m}
}

// Generate runs one completion. contextInfo, when non-empty, is appended to
// the system message so the model sees stored traveler preferences.
func (g *ChatGenerator) Generate(ctx context.Context, system, prompt, contextInfo string) (string, error) {
	sys := system
	if strings.TrimSpace(contextInfo) != "" {
		sys = sys + "\n\nKnown traveler preferences:\n" + contextInfo
	}

	messages := []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(prompt),
	}

	out, err := g.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate: %w", HandleError(err))
	}
	if out == nil {
		return "", fmt.Errorf("generate: model returned no message")
	}
	return out.Content, nil
}
