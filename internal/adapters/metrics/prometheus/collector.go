package prometheus

import (
	"strconv"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/bnema/cuedesk/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cuedesk"

// Collector exports engine activity. Every series is registered on the
// registerer passed to New so tests can use a private registry.
type Collector struct {
	turns          *prometheus.CounterVec
	tools          *prometheus.CounterVec
	confirmations  *prometheus.CounterVec
	reachability   *prometheus.GaugeVec
	activeSessions prometheus.Gauge
}

var _ ports.Metrics = (*Collector)(nil)

func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Chat turns completed, by response mode.",
			},
			[]string{"mode"},
		),
		tools: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_executions_total",
				Help:      "Device actions executed, by action and outcome.",
			},
			[]string{"action", "succeeded"},
		),
		confirmations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "confirmations_requested_total",
				Help:      "Actions held for explicit confirmation, by severity.",
			},
			[]string{"severity"},
		),
		reachability: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reasoning_backend_reachability",
				Help:      "1 for the current reachability state of the remote reasoning backend, 0 otherwise.",
			},
			[]string{"state"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Sessions currently held in memory.",
			},
		),
	}
}

func (c *Collector) TurnCompleted(mode domain.ResponseMode) {
	c.turns.WithLabelValues(string(mode)).Inc()
}

func (c *Collector) ToolExecuted(action string, succeeded bool) {
	c.tools.WithLabelValues(action, strconv.FormatBool(succeeded)).Inc()
}

func (c *Collector) ConfirmationRequested(severity domain.Tier) {
	c.confirmations.WithLabelValues(severity.String()).Inc()
}

func (c *Collector) ReachabilityChanged(state domain.Reachability) {
	for _, candidate := range []domain.Reachability{
		domain.ReachabilityUnknown,
		domain.ReachabilityReachable,
		domain.ReachabilityUnreachable,
	} {
		value := 0.0
		if candidate == state {
			value = 1
		}
		c.reachability.WithLabelValues(candidate.String()).Set(value)
	}
}

func (c *Collector) ActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}
