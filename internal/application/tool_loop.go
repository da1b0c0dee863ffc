package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

const (
	DefaultMaxDepth     = 5
	DefaultHistoryLimit = 40
)

type LoopResult struct {
	Text              string
	NeedsConfirmation bool
	Executed          []string
	ReasoningCalls    int
	DepthExhausted    bool
}

// ToolLoop drives the back-and-forth between the remote backend and the
// tool executor. Buffered and streamed turns share every state transition;
// only delivery differs.
type ToolLoop struct {
	sessions     *SessionStore
	runner       *actionRunner
	backend      ports.ReasoningBackend
	maxDepth     int
	historyLimit int
}

func newToolLoop(sessions *SessionStore, runner *actionRunner, backend ports.ReasoningBackend, maxDepth, historyLimit int) *ToolLoop {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	return &ToolLoop{
		sessions:     sessions,
		runner:       runner,
		backend:      backend,
		maxDepth:     maxDepth,
		historyLimit: historyLimit,
	}
}

// Step asks the backend for its next reply on the session's current history
// and records that reply.
func (l *ToolLoop) Step(ctx context.Context, t turn) (ports.ReasoningStep, error) {
	req := ports.ReasoningRequest{
		SystemPrompt: t.SystemPrompt,
		Messages:     l.sessions.History(t.SessionID, l.historyLimit),
		Tools:        t.Tools,
	}

	var (
		step ports.ReasoningStep
		err  error
	)
	if t.Emit != nil {
		step, err = l.backend.Stream(ctx, req, func(fragment string) {
			if fragment != "" {
				t.Emit.emit(Event{Type: EventText, Text: fragment})
			}
		})
	} else {
		step, err = l.backend.Complete(ctx, req)
	}
	if err != nil {
		return ports.ReasoningStep{}, err
	}

	for i := range step.ToolCalls {
		if step.ToolCalls[i].Params == nil {
			step.ToolCalls[i].Params = map[string]any{}
		}
		if step.ToolCalls[i].ID == "" {
			step.ToolCalls[i].ID = fmt.Sprintf("call_%s_%d", t.ID, i)
		}
	}

	l.sessions.RecordMessage(t.SessionID, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   step.Text,
		ToolCalls: step.ToolCalls,
	})
	if step.WantsTools() {
		t.Emit.emit(Event{Type: EventTools, Calls: step.ToolCalls})
	}

	t.Log.Debug().Int("tool_calls", len(step.ToolCalls)).Str("finish", string(step.Finish)).Msg("reasoning step")
	return step, nil
}

// Run resolves first and every follow-up step. At most maxDepth follow-up
// reasoning calls are made; past that the loop stops and returns what it has.
// The first gated action halts the turn.
func (l *ToolLoop) Run(ctx context.Context, t turn, first ports.ReasoningStep) (LoopResult, error) {
	var (
		result   LoopResult
		texts    []string
		outcomes []string
	)

	step := first
	for depth := 0; ; depth++ {
		if text := strings.TrimSpace(step.Text); text != "" {
			texts = append(texts, text)
		}
		if !step.WantsTools() {
			break
		}

		for i, call := range step.ToolCalls {
			decision := l.runner.gate.Evaluate(call.Name, call.Params, t.Live)
			if decision.Required {
				l.halt(t, step.ToolCalls[i:], decision)
				l.runner.requestConfirmation(t, call, decision)
				result.Text = decision.Reason
				result.NeedsConfirmation = true
				return result, nil
			}

			outcome := l.runner.execute(ctx, t, call)
			result.Executed = append(result.Executed, call.Name)
			outcomes = append(outcomes, outcome.Outcome())
			l.sessions.RecordMessage(t.SessionID, domain.Message{
				Role:       domain.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    toolResultContent(outcome),
			})
		}

		if depth >= l.maxDepth {
			result.DepthExhausted = true
			t.Log.Warn().Int("depth", depth).Msg("tool loop depth exhausted")
			break
		}

		next, err := l.Step(ctx, t)
		if err != nil {
			result.Text = composeText(texts, outcomes)
			return result, fmt.Errorf("follow-up reasoning step %d: %w", depth+1, err)
		}
		result.ReasoningCalls++
		step = next
	}

	result.Text = composeText(texts, outcomes)
	return result, nil
}

// halt answers every unresolved call in the batch so the history the backend
// sees next turn stays well formed, then records the question itself.
func (l *ToolLoop) halt(t turn, unresolved []domain.ToolCall, decision domain.Decision) {
	gated := unresolved[0]
	for i, call := range unresolved {
		payload := map[string]any{
			"success":              false,
			"pending_confirmation": true,
			"message":              decision.Reason,
		}
		if i > 0 {
			payload = map[string]any{
				"success": false,
				"skipped": true,
				"message": fmt.Sprintf("not executed: waiting for the user to confirm %s", gated.Name),
			}
		}
		content, _ := json.Marshal(payload)
		l.sessions.RecordMessage(t.SessionID, domain.Message{
			Role:       domain.RoleTool,
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    string(content),
		})
	}
	l.sessions.RecordMessage(t.SessionID, domain.Message{Role: domain.RoleAssistant, Content: decision.Reason})
}

func toolResultContent(result domain.ActionResult) string {
	payload := map[string]any{"success": result.Success}
	if result.Message != "" {
		payload["message"] = result.Message
	}
	if result.Error != "" {
		payload["error"] = result.Error
	}
	if len(result.Data) > 0 {
		payload["data"] = result.Data
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return result.Outcome()
	}
	return string(content)
}

func composeText(texts, outcomes []string) string {
	if len(texts) > 0 {
		return strings.Join(texts, "\n\n")
	}
	if len(outcomes) > 0 {
		return strings.Join(outcomes, "\n")
	}
	return "Done."
}
