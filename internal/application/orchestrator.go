package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	cancelledMessage = "Cancelled. Nothing was changed."
	failureMessage   = "Sorry, I couldn't process that right now: "
)

// Orchestrator is the entry point for one user turn. Each instance owns its
// sessions, pending confirmations, reachability and audit trail.
type Orchestrator struct {
	cfg       Config
	sessions  *SessionStore
	memory    *MemoryTracker
	gate      *ConfirmationGate
	arbiter   *ModeArbiter
	audit     *AuditLog
	runner    *actionRunner
	loop      *ToolLoop
	scheduler *Scheduler

	executor  ports.ToolExecutor
	matcher   ports.IntentMatcher
	backend   ports.ReasoningBackend
	live      ports.LiveContextProvider
	snapshots ports.SessionSnapshotStore
	auditSink ports.AuditSink
	repo      ports.SettingsRepository
	metrics   ports.Metrics
	clock     ports.Clock
	log       zerolog.Logger

	settingsMu sync.RWMutex
	settings   domain.Settings

	lifecycleMu sync.Mutex
	started     bool
}

func New(collab Collaborators, opts ...Option) *Orchestrator {
	o := options{
		config:   DefaultConfig(),
		settings: domain.DefaultSettings(),
		policy:   domain.DefaultRiskPolicy(),
		clock:    ports.SystemClock{},
		log:      zerolog.Nop(),
		metrics:  ports.NopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.config.withDefaults()
	if o.clock == nil {
		o.clock = ports.SystemClock{}
	}
	if o.metrics == nil {
		o.metrics = ports.NopMetrics{}
	}

	sessions := NewSessionStore(cfg.SessionTTL, o.clock)
	memory := NewMemoryTracker(sessions, o.clock)
	gate := NewConfirmationGate(o.policy, cfg.ConfirmationExpiry, o.clock, o.log)
	audit := NewAuditLog(cfg.AuditCapacity)
	runner := &actionRunner{
		executor: collab.Executor,
		gate:     gate,
		audit:    audit,
		sink:     o.auditSink,
		memory:   memory,
		metrics:  o.metrics,
		clock:    o.clock,
	}

	return &Orchestrator{
		cfg:       cfg,
		sessions:  sessions,
		memory:    memory,
		gate:      gate,
		arbiter:   NewModeArbiter(collab.Backend, o.settings.Mode, cfg.ProbeTimeout, o.metrics, o.log),
		audit:     audit,
		runner:    runner,
		loop:      newToolLoop(sessions, runner, collab.Backend, cfg.MaxDepth, cfg.HistoryLimit),
		scheduler: newScheduler(o.log),
		executor:  collab.Executor,
		matcher:   collab.Matcher,
		backend:   collab.Backend,
		live:      collab.Live,
		snapshots: o.snapshots,
		auditSink: o.auditSink,
		repo:      o.repo,
		metrics:   o.metrics,
		clock:     o.clock,
		log:       o.log,
		settings:  o.settings,
	}
}

// Start schedules the reachability probe and the session sweep.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.started {
		return nil
	}
	if err := o.scheduler.every("probe", o.cfg.ProbeInterval, func() { o.arbiter.Probe(ctx) }); err != nil {
		return err
	}
	if err := o.scheduler.every("session-sweep", o.cfg.SweepInterval, func() { o.SweepSessions() }); err != nil {
		o.scheduler.clear()
		return err
	}
	o.scheduler.Start()
	o.started = true
	return nil
}

// Stop halts background jobs and drops every pending confirmation timer.
func (o *Orchestrator) Stop() {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.started {
		o.scheduler.Stop()
		o.started = false
	}
	o.gate.Close()
}

// Chat processes one turn and always returns a response.
func (o *Orchestrator) Chat(ctx context.Context, text, sessionID string) Response {
	return o.process(ctx, text, sessionID, nil)
}

// ChatStream processes one turn and delivers its events in order. The
// channel is closed after the EventDone event. Callers drain it or cancel ctx.
func (o *Orchestrator) ChatStream(ctx context.Context, text, sessionID string) <-chan Event {
	events := make(chan Event, 32)
	go func() {
		defer close(events)
		send := func(event Event) {
			select {
			case events <- event:
			case <-ctx.Done():
			}
		}
		resp := o.process(ctx, text, sessionID, send)
		send(Event{Type: EventDone, Text: resp.Message, Response: &resp})
	}()
	return events
}

func (o *Orchestrator) ClearSession(ctx context.Context, sessionID string) {
	sessionID = normalizeSessionID(sessionID)
	unlock := o.sessions.Lock(sessionID)
	defer unlock()

	o.sessions.Clear(sessionID)
	o.gate.DropPending(sessionID)
	if o.snapshots != nil {
		if err := o.snapshots.Delete(ctx, sessionID); err != nil {
			o.log.Warn().Err(err).Str("session", sessionID).Msg("delete session snapshot failed")
		}
	}
	o.metrics.ActiveSessions(o.sessions.Count())
}

func (o *Orchestrator) AuditLog(limit int) []domain.AuditEntry {
	return o.audit.Recent(limit)
}

func (o *Orchestrator) Config() domain.Settings {
	o.settingsMu.RLock()
	defer o.settingsMu.RUnlock()

	settings := o.settings
	settings.Mode = o.arbiter.Mode()
	return settings
}

// SetConfig applies a partial update, reconfigures the backend and persists
// the result when a repository is wired.
func (o *Orchestrator) SetConfig(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	o.settingsMu.Lock()
	updated, err := o.settings.Apply(patch)
	if err != nil {
		o.settingsMu.Unlock()
		return domain.Settings{}, err
	}
	updated.UpdatedAt = o.clock.Now()
	o.settings = updated
	o.settingsMu.Unlock()

	o.arbiter.SetMode(updated.Mode)
	if configurable, ok := o.backend.(ports.ConfigurableBackend); ok {
		configurable.Configure(updated.Reasoning)
	}

	if o.repo != nil {
		if err := o.repo.Save(ctx, updated); err != nil {
			return updated, fmt.Errorf("save settings: %w", err)
		}
	}
	return updated, nil
}

func (o *Orchestrator) ActiveSessions() int {
	return o.sessions.Count()
}

func (o *Orchestrator) AuditLen() int {
	return o.audit.Len()
}

func (o *Orchestrator) Reachability() domain.Reachability {
	return o.arbiter.Reachability()
}

func (o *Orchestrator) ProbeNow(ctx context.Context) domain.Reachability {
	o.arbiter.Probe(ctx)
	return o.arbiter.Reachability()
}

// SweepSessions removes sessions idle beyond the TTL and returns the count.
func (o *Orchestrator) SweepSessions() int {
	removed := o.sessions.SweepExpired(o.clock.Now())
	if removed > 0 {
		o.log.Info().Int("removed", removed).Msg("expired sessions swept")
	}
	o.metrics.ActiveSessions(o.sessions.Count())
	return removed
}

func (o *Orchestrator) process(ctx context.Context, text, sessionID string, emit Emitter) Response {
	sessionID = normalizeSessionID(sessionID)
	unlock := o.sessions.Lock(sessionID)
	defer unlock()

	t := turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Emit:      emit,
	}
	t.Log = o.log.With().Str("session", sessionID).Str("turn", t.ID).Logger()

	o.ensureSession(ctx, t)
	resp := o.respond(ctx, t, strings.TrimSpace(text))
	resp.SessionID = sessionID

	o.persist(ctx, t)
	o.metrics.TurnCompleted(resp.Mode)
	o.metrics.ActiveSessions(o.sessions.Count())
	return resp
}

func (o *Orchestrator) respond(ctx context.Context, t turn, text string) Response {
	if pending, ok := o.gate.TakePending(t.SessionID); ok {
		switch o.gate.ClassifyReply(text) {
		case domain.ReplyConfirm:
			return o.confirm(ctx, t, text, pending)
		case domain.ReplyDeny:
			return o.cancel(t, text, pending)
		default:
			t.Log.Debug().Str("action", pending.Action).Msg("pending confirmation dropped, treating reply as new input")
		}
	}

	o.sessions.RecordMessage(t.SessionID, domain.Message{Role: domain.RoleUser, Content: text})
	t.Live = o.gatherLiveContext(ctx, t)

	var remoteErr error
	if o.arbiter.ShouldAttemptRemote() {
		resp, err := o.remote(ctx, t)
		if err == nil {
			return resp
		}
		remoteErr = err
	}

	return o.local(ctx, t, text, remoteErr)
}

func (o *Orchestrator) confirm(ctx context.Context, t turn, text string, pending domain.PendingConfirmation) Response {
	o.sessions.RecordMessage(t.SessionID, domain.Message{Role: domain.RoleUser, Content: text})

	call := domain.ToolCall{Name: pending.Action, Params: pending.Params}
	result := o.runner.execute(ctx, t, call)

	message := result.Outcome()
	if result.Success {
		message = "Done."
		if result.Message != "" {
			message += " " + result.Message
		}
	}
	o.reply(t, message)

	return Response{Message: message, Mode: domain.ResponseConfirmed, Actions: []string{call.Name}}
}

func (o *Orchestrator) cancel(t turn, text string, pending domain.PendingConfirmation) Response {
	o.sessions.RecordMessage(t.SessionID, domain.Message{Role: domain.RoleUser, Content: text})
	o.reply(t, cancelledMessage)
	t.Log.Info().Str("action", pending.Action).Msg("confirmation declined")

	return Response{Message: cancelledMessage, Mode: domain.ResponseCancelled}
}

func (o *Orchestrator) remote(ctx context.Context, t turn) (Response, error) {
	tools, err := o.executor.ListActions(ctx)
	if err != nil {
		t.Log.Warn().Err(err).Msg("list actions failed, continuing without tools")
	}
	t.Tools = tools
	t.SystemPrompt = buildSystemPrompt(o.cfg.SystemPrompt, o.memory.Summarize(t.SessionID), t.Live)

	// A failed first step falls back to the local matcher, so its stream
	// events are held until the backend has answered in full.
	var held []Event
	firstTurn := t
	if t.Emit != nil {
		firstTurn.Emit = func(event Event) { held = append(held, event) }
	}
	first, err := o.loop.Step(ctx, firstTurn)
	if err != nil {
		if len(held) > 0 {
			t.Log.Debug().Int("events", len(held)).Msg("partial remote reply discarded")
		}
		o.arbiter.OnRemoteFailure(err)
		return Response{}, err
	}
	o.arbiter.OnRemoteSuccess()
	for _, event := range held {
		t.Emit.emit(event)
	}

	result, err := o.loop.Run(ctx, t, first)
	if err != nil {
		// Actions already ran this turn; replaying the text locally could
		// fire them twice, so report what happened instead.
		o.arbiter.OnRemoteFailure(err)
	}

	return Response{
		Message:           result.Text,
		Mode:              domain.ResponseOnline,
		NeedsConfirmation: result.NeedsConfirmation,
		Actions:           result.Executed,
	}, nil
}

func (o *Orchestrator) local(ctx context.Context, t turn, text string, remoteErr error) Response {
	if o.matcher == nil {
		return o.failed(t, errors.Join(remoteErr, errors.New("no local intent matcher configured")))
	}

	intent, err := o.matcher.Process(ctx, text, t.Live)
	if err != nil {
		return o.failed(t, errors.Join(remoteErr, fmt.Errorf("local intent matcher: %w", err)))
	}

	resp := Response{Message: intent.Message, Mode: domain.ResponseOffline}
	call := domain.ToolCall{Name: intent.Action, Params: intent.Params}
	if call.Params == nil {
		call.Params = map[string]any{}
	}

	switch {
	case intent.Action == "":
	case intent.Executed:
		result := domain.ActionResult{Success: true}
		if intent.Result != nil {
			result = *intent.Result
		}
		o.runner.record(ctx, t, call, result)
		resp.Actions = []string{call.Name}
	default:
		decision := o.gate.Evaluate(call.Name, call.Params, t.Live)
		if decision.Required {
			o.runner.requestConfirmation(t, call, decision)
			resp.Message = decision.Reason
			resp.NeedsConfirmation = true
			o.sessions.RecordMessage(t.SessionID, domain.Message{Role: domain.RoleAssistant, Content: resp.Message})
			return resp
		}
		result := o.runner.execute(ctx, t, call)
		resp.Actions = []string{call.Name}
		resp.Message = localOutcome(intent.Message, result)
	}

	if resp.Message == "" {
		resp.Message = "Done."
	}
	o.reply(t, resp.Message)
	return resp
}

func (o *Orchestrator) failed(t turn, err error) Response {
	t.Log.Error().Err(err).Msg("no backend could process the turn")
	message := failureMessage + err.Error()
	o.reply(t, message)
	return Response{Message: message, Mode: domain.ResponseOffline}
}

func (o *Orchestrator) reply(t turn, message string) {
	o.sessions.RecordMessage(t.SessionID, domain.Message{Role: domain.RoleAssistant, Content: message})
	t.Emit.emit(Event{Type: EventText, Text: message})
}

// gatherLiveContext fetches each field concurrently; a failed fetch leaves
// its field at the zero value.
func (o *Orchestrator) gatherLiveContext(ctx context.Context, t turn) domain.LiveContext {
	live := domain.LiveContext{FetchedAt: o.clock.Now()}
	if o.live == nil {
		return live
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		playback, err := o.live.Playback(gctx)
		if err != nil {
			t.Log.Warn().Err(err).Msg("playback status unavailable")
			return nil
		}
		live.Playback = playback
		return nil
	})
	g.Go(func() error {
		offline, err := o.live.OfflineNodes(gctx)
		if err != nil {
			t.Log.Warn().Err(err).Msg("node status unavailable")
			return nil
		}
		live.OfflineNodes = offline
		return nil
	})
	_ = g.Wait()

	return live
}

// ensureSession restores a persisted snapshot when the session is not live
// in this process yet.
func (o *Orchestrator) ensureSession(ctx context.Context, t turn) {
	if o.snapshots != nil && !o.sessions.Exists(t.SessionID) {
		snapshot, err := o.snapshots.Load(ctx, t.SessionID)
		switch {
		case err == nil:
			snapshot.ID = t.SessionID
			if o.sessions.Restore(snapshot) {
				t.Log.Debug().Int("messages", len(snapshot.Messages)).Msg("session restored from snapshot")
			}
		case !errors.Is(err, domain.ErrSessionNotFound):
			t.Log.Warn().Err(err).Msg("load session snapshot failed")
		}
	}
	o.sessions.GetOrCreate(t.SessionID)
}

func (o *Orchestrator) persist(ctx context.Context, t turn) {
	if o.snapshots == nil {
		return
	}
	session, ok := o.sessions.Snapshot(t.SessionID)
	if !ok {
		return
	}
	if err := o.snapshots.Save(ctx, session); err != nil {
		t.Log.Warn().Err(err).Msg("save session snapshot failed")
	}
}

func localOutcome(intentMessage string, result domain.ActionResult) string {
	if !result.Success {
		return result.Outcome()
	}
	if result.Message != "" {
		return result.Message
	}
	if intentMessage != "" {
		return intentMessage
	}
	return "Done."
}

func normalizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.DefaultSessionID
	}
	return id
}
