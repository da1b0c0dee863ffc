package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultProbeInterval = 60 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// ModeArbiter decides per turn whether the remote backend is worth trying.
// Reachability is process-wide; unreachable sticks until a probe or live
// call succeeds.
type ModeArbiter struct {
	backend      ports.ReasoningBackend
	probeTimeout time.Duration
	metrics      ports.Metrics
	log          zerolog.Logger

	mu    sync.RWMutex
	mode  domain.Mode
	state domain.Reachability
}

func NewModeArbiter(backend ports.ReasoningBackend, mode domain.Mode, probeTimeout time.Duration, metrics ports.Metrics, log zerolog.Logger) *ModeArbiter {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if mode == "" {
		mode = domain.ModeAuto
	}

	return &ModeArbiter{
		backend:      backend,
		probeTimeout: probeTimeout,
		metrics:      metrics,
		log:          log,
		mode:         mode,
	}
}

// ShouldAttemptRemote is true when the mode allows remote reasoning and the
// backend is not known to be down. Unknown counts as worth a try.
func (a *ModeArbiter) ShouldAttemptRemote() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.backend != nil && a.mode.AllowsRemote() && a.state != domain.ReachabilityUnreachable
}

func (a *ModeArbiter) OnRemoteFailure(err error) {
	a.log.Warn().Err(err).Msg("remote reasoning failed, falling back to local matching")
	a.setState(domain.ReachabilityUnreachable)
}

func (a *ModeArbiter) OnRemoteSuccess() {
	a.setState(domain.ReachabilityReachable)
}

// Probe refreshes reachability with a cheap backend call. It never fails.
func (a *ModeArbiter) Probe(ctx context.Context) {
	a.mu.RLock()
	skip := a.backend == nil || !a.mode.AllowsRemote()
	a.mu.RUnlock()
	if skip {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	if err := a.backend.Ping(ctx); err != nil {
		a.log.Debug().Err(err).Msg("reasoning backend probe failed")
		a.setState(domain.ReachabilityUnreachable)
		return
	}
	a.setState(domain.ReachabilityReachable)
}

func (a *ModeArbiter) Reachability() domain.Reachability {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.state
}

func (a *ModeArbiter) Mode() domain.Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.mode
}

func (a *ModeArbiter) SetMode(mode domain.Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info().Str("mode", string(mode)).Msg("operating mode changed")
	}
}

func (a *ModeArbiter) setState(state domain.Reachability) {
	a.mu.Lock()
	changed := a.state != state
	a.state = state
	a.mu.Unlock()

	if changed {
		a.metrics.ReachabilityChanged(state)
		a.log.Info().Str("reachability", state.String()).Msg("reasoning backend reachability changed")
	}
}
