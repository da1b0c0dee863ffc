package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
)

var baseTime = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedBackend replays steps in order. Once the script runs out it answers
// with repeat when set, or a plain "ok".
type scriptedBackend struct {
	mu       sync.Mutex
	steps    []ports.ReasoningStep
	repeat   *ports.ReasoningStep
	failAt   map[int]error
	partial  map[int]string
	pingErr  error
	calls    int
	pings    int
	requests []ports.ReasoningRequest
}

func (b *scriptedBackend) next(req ports.ReasoningRequest) (ports.ReasoningStep, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	call := b.calls
	b.calls++
	b.requests = append(b.requests, req)

	if err, ok := b.failAt[call]; ok {
		return ports.ReasoningStep{}, err
	}
	if call < len(b.steps) {
		return cloneStep(b.steps[call]), nil
	}
	if b.repeat != nil {
		step := cloneStep(*b.repeat)
		for i := range step.ToolCalls {
			step.ToolCalls[i].ID = ""
		}
		return step, nil
	}
	return ports.ReasoningStep{Text: "ok", Finish: ports.FinishStop}, nil
}

func (b *scriptedBackend) Complete(_ context.Context, req ports.ReasoningRequest) (ports.ReasoningStep, error) {
	return b.next(req)
}

func (b *scriptedBackend) Stream(_ context.Context, req ports.ReasoningRequest, onText func(string)) (ports.ReasoningStep, error) {
	b.mu.Lock()
	partial := b.partial[b.calls]
	b.mu.Unlock()

	step, err := b.next(req)
	if err != nil {
		if partial != "" {
			onText(partial)
		}
		return step, err
	}
	if step.Text != "" {
		half := len(step.Text) / 2
		onText(step.Text[:half])
		onText(step.Text[half:])
	}
	return step, nil
}

func (b *scriptedBackend) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pings++
	return b.pingErr
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *scriptedBackend) lastRequest() ports.ReasoningRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func cloneStep(step ports.ReasoningStep) ports.ReasoningStep {
	out := step
	out.ToolCalls = make([]domain.ToolCall, len(step.ToolCalls))
	for i, call := range step.ToolCalls {
		out.ToolCalls[i] = call.Clone()
	}
	if len(out.ToolCalls) == 0 {
		out.ToolCalls = nil
	}
	return out
}

func toolStep(calls ...domain.ToolCall) ports.ReasoningStep {
	return ports.ReasoningStep{ToolCalls: calls, Finish: ports.FinishToolCalls}
}

func textStep(text string) ports.ReasoningStep {
	return ports.ReasoningStep{Text: text, Finish: ports.FinishStop}
}

type executedCall struct {
	Name   string
	Params map[string]any
}

type fakeExecutor struct {
	mu      sync.Mutex
	results map[string]domain.ActionResult
	errs    map[string]error
	calls   []executedCall
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{results: map[string]domain.ActionResult{}, errs: map[string]error{}}
}

func (e *fakeExecutor) ListActions(context.Context) ([]domain.ActionSpec, error) {
	return []domain.ActionSpec{
		{Name: "list_scenes", Description: "List scenes"},
		{Name: "create_scene", Description: "Create a scene"},
		{Name: "delete_scene", Description: "Delete a scene"},
		{Name: "create_chase", Description: "Create a chase"},
	}, nil
}

func (e *fakeExecutor) Execute(_ context.Context, name string, params map[string]any) (domain.ActionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, executedCall{Name: name, Params: params})
	if err, ok := e.errs[name]; ok {
		return domain.ActionResult{}, err
	}
	if result, ok := e.results[name]; ok {
		return result, nil
	}
	return domain.ActionResult{Success: true}, nil
}

func (e *fakeExecutor) executed(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, call := range e.calls {
		if call.Name == name {
			count++
		}
	}
	return count
}

func (e *fakeExecutor) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakeMatcher struct {
	mu      sync.Mutex
	results map[string]domain.IntentResult
	err     error
	inputs  []string
}

func (m *fakeMatcher) Process(_ context.Context, text string, _ domain.LiveContext) (domain.IntentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, text)
	if m.err != nil {
		return domain.IntentResult{}, m.err
	}
	if result, ok := m.results[text]; ok {
		return result, nil
	}
	return domain.IntentResult{Message: "I didn't understand that. Try \"list scenes\"."}, nil
}

func (m *fakeMatcher) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inputs...)
}

type fakeLive struct {
	playback   domain.PlaybackState
	offline    []string
	playErr    error
	offlineErr error
}

func (l *fakeLive) Playback(context.Context) (domain.PlaybackState, error) {
	return l.playback, l.playErr
}

func (l *fakeLive) OfflineNodes(context.Context) ([]string, error) {
	return l.offline, l.offlineErr
}

type memorySnapshots struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func (s *memorySnapshots) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = map[string]domain.Session{}
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *memorySnapshots) Load(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *memorySnapshots) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type memorySettingsRepo struct {
	saved   []domain.Settings
	saveErr error
}

func (r *memorySettingsRepo) Load(context.Context) (domain.Settings, error) {
	if len(r.saved) == 0 {
		return domain.Settings{}, domain.ErrSettingsNotFound
	}
	return r.saved[len(r.saved)-1], nil
}

func (r *memorySettingsRepo) Save(_ context.Context, settings domain.Settings) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, settings)
	return nil
}

var errBackendDown = errors.New("dial tcp: connection refused")

type harness struct {
	orch     *Orchestrator
	backend  *scriptedBackend
	executor *fakeExecutor
	matcher  *fakeMatcher
	live     *fakeLive
	clock    *fakeClock
}

func newHarness(backend *scriptedBackend, opts ...Option) *harness {
	h := &harness{
		backend:  backend,
		executor: newFakeExecutor(),
		matcher:  &fakeMatcher{results: map[string]domain.IntentResult{}},
		live:     &fakeLive{},
		clock:    newFakeClock(),
	}

	collab := Collaborators{Executor: h.executor, Matcher: h.matcher, Live: h.live}
	if backend != nil {
		collab.Backend = backend
	}
	h.orch = New(collab, append([]Option{WithClock(h.clock)}, opts...)...)
	return h
}

func (h *harness) chat(text, sessionID string) Response {
	return h.orch.Chat(context.Background(), text, sessionID)
}

func (h *harness) close() {
	h.orch.Stop()
}
