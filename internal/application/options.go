package application

import (
	"time"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/rs/zerolog"
)

// Config holds engine tuning. Zero values fall back to the defaults.
type Config struct {
	SessionTTL         time.Duration
	SweepInterval      time.Duration
	ConfirmationExpiry time.Duration
	MaxDepth           int
	HistoryLimit       int
	ProbeInterval      time.Duration
	ProbeTimeout       time.Duration
	AuditCapacity      int
	SystemPrompt       string
}

const DefaultSweepInterval = 60 * time.Minute

func DefaultConfig() Config {
	return Config{
		SessionTTL:         DefaultSessionTTL,
		SweepInterval:      DefaultSweepInterval,
		ConfirmationExpiry: DefaultConfirmationExpiry,
		MaxDepth:           DefaultMaxDepth,
		HistoryLimit:       DefaultHistoryLimit,
		ProbeInterval:      DefaultProbeInterval,
		ProbeTimeout:       DefaultProbeTimeout,
		AuditCapacity:      domain.DefaultAuditCapacity,
		SystemPrompt:       defaultSystemPrompt,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.ConfirmationExpiry <= 0 {
		c.ConfirmationExpiry = d.ConfirmationExpiry
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.AuditCapacity <= 0 {
		c.AuditCapacity = d.AuditCapacity
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	return c
}

// Collaborators are the external systems one orchestrator drives. Backend
// and Live may be nil: the engine then runs local-only and without live
// context.
type Collaborators struct {
	Executor ports.ToolExecutor
	Matcher  ports.IntentMatcher
	Backend  ports.ReasoningBackend
	Live     ports.LiveContextProvider
}

type Option func(*options)

type options struct {
	config    Config
	settings  domain.Settings
	policy    domain.RiskPolicy
	clock     ports.Clock
	log       zerolog.Logger
	metrics   ports.Metrics
	auditSink ports.AuditSink
	snapshots ports.SessionSnapshotStore
	repo      ports.SettingsRepository
}

func WithConfig(cfg Config) Option {
	return func(o *options) { o.config = cfg }
}

func WithSettings(settings domain.Settings) Option {
	return func(o *options) { o.settings = settings }
}

func WithPolicy(policy domain.RiskPolicy) Option {
	return func(o *options) { o.policy = policy }
}

func WithClock(clock ports.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(metrics ports.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

func WithAuditSink(sink ports.AuditSink) Option {
	return func(o *options) { o.auditSink = sink }
}

func WithSnapshotStore(store ports.SessionSnapshotStore) Option {
	return func(o *options) { o.snapshots = store }
}

func WithSettingsRepository(repo ports.SettingsRepository) Option {
	return func(o *options) { o.repo = repo }
}
