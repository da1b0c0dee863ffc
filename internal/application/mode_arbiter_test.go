package application

import (
	"context"
	"testing"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type reachabilityRecorder struct {
	states []domain.Reachability
}

func (r *reachabilityRecorder) TurnCompleted(domain.ResponseMode) {}
func (r *reachabilityRecorder) ToolExecuted(string, bool)         {}
func (r *reachabilityRecorder) ConfirmationRequested(domain.Tier) {}
func (r *reachabilityRecorder) ActiveSessions(int)                {}
func (r *reachabilityRecorder) ReachabilityChanged(s domain.Reachability) {
	r.states = append(r.states, s)
}

func TestModeArbiterUnknownIsWorthATry(t *testing.T) {
	t.Parallel()

	arbiter := NewModeArbiter(&scriptedBackend{}, domain.ModeAuto, 0, nil, zerolog.Nop())
	assert.Equal(t, domain.ReachabilityUnknown, arbiter.Reachability())
	assert.True(t, arbiter.ShouldAttemptRemote())
}

func TestModeArbiterFailureIsStickyUntilProbeSucceeds(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{pingErr: errBackendDown}
	metrics := &reachabilityRecorder{}
	arbiter := NewModeArbiter(backend, domain.ModeAuto, 0, metrics, zerolog.Nop())

	arbiter.OnRemoteFailure(errBackendDown)
	assert.False(t, arbiter.ShouldAttemptRemote())

	arbiter.Probe(context.Background())
	assert.Equal(t, domain.ReachabilityUnreachable, arbiter.Reachability())

	backend.mu.Lock()
	backend.pingErr = nil
	backend.mu.Unlock()

	arbiter.Probe(context.Background())
	assert.Equal(t, domain.ReachabilityReachable, arbiter.Reachability())
	assert.True(t, arbiter.ShouldAttemptRemote())
	assert.Equal(t, []domain.Reachability{domain.ReachabilityUnreachable, domain.ReachabilityReachable}, metrics.states)
}

func TestModeArbiterOfflineModeNeverAttempts(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{}
	arbiter := NewModeArbiter(backend, domain.ModeOffline, 0, nil, zerolog.Nop())
	assert.False(t, arbiter.ShouldAttemptRemote())

	arbiter.Probe(context.Background())
	assert.Zero(t, backend.pings)

	arbiter.SetMode(domain.ModeAuto)
	assert.True(t, arbiter.ShouldAttemptRemote())
}

func TestModeArbiterWithoutBackend(t *testing.T) {
	t.Parallel()

	arbiter := NewModeArbiter(nil, domain.ModeAuto, 0, nil, zerolog.Nop())
	assert.False(t, arbiter.ShouldAttemptRemote())
	arbiter.Probe(context.Background())
	assert.Equal(t, domain.ReachabilityUnknown, arbiter.Reachability())
}
