package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/adelaroche/roam/internal/config"
)

// stubModel returns a canned message and records its input.
type stubModel struct {
	reply    string
	err      error
	lastMsgs []*schema.Message
}

func (s *stubModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.lastMsgs = input
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := s.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestGenerate(t *testing.T) {
	stub := &stubModel{reply: "Day 1: the old town."}
	gen := New(stub)

	out, err := gen.Generate(context.Background(), "You plan trips.", "3 days in Lisbon", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Day 1: the old town." {
		t.Errorf("output: got %q", out)
	}

	if len(stub.lastMsgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(stub.lastMsgs))
	}
	if stub.lastMsgs[0].Role != schema.System {
		t.Errorf("first message role: got %q", stub.lastMsgs[0].Role)
	}
	if stub.lastMsgs[1].Content != "3 days in Lisbon" {
		t.Errorf("prompt: got %q", stub.lastMsgs[1].Content)
	}
}

func TestGenerate_ContextInfoInSystem(t *testing.T) {
	stub := &stubModel{reply: "ok"}
	gen := New(stub)

	_, err := gen.Generate(context.Background(), "You plan trips.", "prompt", "- budget: low")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(stub.lastMsgs[0].Content, "- budget: low") {
		t.Errorf("system message missing preferences: %q", stub.lastMsgs[0].Content)
	}
}

func TestGenerate_ModelError(t *testing.T) {
	stub := &stubModel{err: errors.New("connection refused")}
	gen := New(stub)

	_, err := gen.Generate(context.Background(), "sys", "prompt", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection error") {
		t.Errorf("expected classified connection error, got %v", err)
	}
}

func TestCreateModel_UnknownDriver(t *testing.T) {
	cfg := config.ProviderConfig{Driver: "unknown-driver"}
	_, err := CreateModel(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected 'unknown driver' error, got %v", err)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	cfg := config.ModelsConfig{
		Default:   "main",
		Providers: map[string]config.ProviderConfig{},
	}
	reg := NewRegistry(cfg)

	_, err := reg.Get(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected 'not found' error, got %v", err)
	}
}

func TestRegistry_DefaultName(t *testing.T) {
	cfg := config.ModelsConfig{
		Default: "claude-main",
		Providers: map[string]config.ProviderConfig{
			"claude-main": {Driver: "anthropic"},
		},
	}
	reg := NewRegistry(cfg)

	if reg.DefaultName() != "claude-main" {
		t.Fatalf("expected default name %q, got %q", "claude-main", reg.DefaultName())
	}
}
