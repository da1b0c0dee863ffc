package application

import (
	"context"
	"maps"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// turn carries everything one user turn needs while it moves through the engine.
type turn struct {
	ID           string
	SessionID    string
	Live         domain.LiveContext
	SystemPrompt string
	Tools        []domain.ActionSpec
	Emit         Emitter
	Log          zerolog.Logger
}

// actionRunner executes resolved actions and keeps the audit trail, memory
// and metrics in step with what actually ran.
type actionRunner struct {
	executor ports.ToolExecutor
	gate     *ConfirmationGate
	audit    *AuditLog
	sink     ports.AuditSink
	memory   *MemoryTracker
	metrics  ports.Metrics
	clock    ports.Clock
}

func (r *actionRunner) execute(ctx context.Context, t turn, call domain.ToolCall) domain.ActionResult {
	t.Emit.emit(Event{Type: EventToolStatus, Tool: call.Name, Status: ToolStarted})

	result, err := r.executor.Execute(ctx, call.Name, call.Params)
	if err != nil {
		result = domain.ActionResult{Success: false, Error: err.Error()}
	}

	r.record(ctx, t, call, result)

	status := ToolFinished
	if !result.Success {
		status = ToolErrored
	}
	t.Emit.emit(Event{Type: EventToolStatus, Tool: call.Name, Status: status, Message: result.Outcome()})

	return result
}

// record books an action that already ran, whoever ran it.
func (r *actionRunner) record(ctx context.Context, t turn, call domain.ToolCall, result domain.ActionResult) {
	entry := domain.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: r.clock.Now(),
		SessionID: t.SessionID,
		Action:    call.Name,
		Params:    maps.Clone(call.Params),
		Succeeded: result.Success,
		Message:   result.Outcome(),
	}
	r.audit.Append(entry)
	if r.sink != nil {
		if err := r.sink.Write(ctx, entry); err != nil {
			t.Log.Warn().Err(err).Str("action", call.Name).Msg("audit archive write failed")
		}
	}
	r.metrics.ToolExecuted(call.Name, result.Success)

	if result.Success {
		r.memory.RecordOutcome(t.SessionID, call.Name, outcomeData(call.Params, result.Data))
	}

	event := t.Log.Info()
	if !result.Success {
		event = t.Log.Warn()
	}
	event.Str("action", call.Name).Bool("succeeded", result.Success).Str("outcome", result.Outcome()).Msg("action executed")
}

func (r *actionRunner) requestConfirmation(t turn, call domain.ToolCall, decision domain.Decision) {
	r.gate.SetPending(t.SessionID, call.Name, call.Params, decision.Reason, decision.Severity)
	r.metrics.ConfirmationRequested(decision.Severity)
	t.Emit.emit(Event{
		Type:     EventConfirmationRequired,
		Tool:     call.Name,
		Message:  decision.Reason,
		Severity: decision.Severity,
	})
	t.Log.Info().
		Str("action", call.Name).
		Str("tier", decision.Severity.String()).
		Msg("confirmation required")
}

// outcomeData merges request params under result data so memory can find a
// name even when the device only echoes an id.
func outcomeData(params, data map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(data))
	maps.Copy(out, params)
	maps.Copy(out, data)
	return out
}
