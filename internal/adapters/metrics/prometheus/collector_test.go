package prometheus

import (
	"strings"
	"testing"

	"github.com/bnema/cuedesk/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	c.TurnCompleted(domain.ResponseOnline)
	c.TurnCompleted(domain.ResponseOnline)
	c.TurnCompleted(domain.ResponseOffline)
	c.ToolExecuted("delete_scene", true)
	c.ToolExecuted("set_channel", false)
	c.ConfirmationRequested(domain.TierHigh)
	c.ActiveSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turns.WithLabelValues("online")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turns.WithLabelValues("offline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tools.WithLabelValues("set_channel", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.confirmations.WithLabelValues("high")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeSessions))
}

func TestCollectorReachabilityIsOneHot(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ReachabilityChanged(domain.ReachabilityUnreachable)
	c.ReachabilityChanged(domain.ReachabilityReachable)

	expected := `
# HELP cuedesk_reasoning_backend_reachability 1 for the current reachability state of the remote reasoning backend, 0 otherwise.
# TYPE cuedesk_reasoning_backend_reachability gauge
cuedesk_reasoning_backend_reachability{state="reachable"} 1
cuedesk_reasoning_backend_reachability{state="unknown"} 0
cuedesk_reasoning_backend_reachability{state="unreachable"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cuedesk_reasoning_backend_reachability"))
}
