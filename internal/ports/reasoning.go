package ports

import (
	"context"

	"github.com/bnema/cuedesk/internal/domain"
)

type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
)

type ReasoningRequest struct {
	SystemPrompt string
	Messages     []domain.Message
	Tools        []domain.ActionSpec
}

// ReasoningStep is one reply of the remote backend: text, proposed tool
// calls, or both.
type ReasoningStep struct {
	Text      string
	ToolCalls []domain.ToolCall
	Finish    FinishReason
}

func (s ReasoningStep) WantsTools() bool {
	return len(s.ToolCalls) > 0
}

type ReasoningBackend interface {
	Complete(ctx context.Context, req ReasoningRequest) (ReasoningStep, error)
	// Stream delivers text fragments to onText as they arrive and returns the
	// assembled step once the backend signals the end of the step.
	Stream(ctx context.Context, req ReasoningRequest, onText func(string)) (ReasoningStep, error)
	// Ping is a minimal call used only to refresh reachability.
	Ping(ctx context.Context) error
}

// ConfigurableBackend is implemented by backends that accept endpoint and
// model changes at runtime.
type ConfigurableBackend interface {
	Configure(settings domain.ReasoningSettings)
}
