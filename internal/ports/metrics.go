package ports

import "github.com/bnema/cuedesk/internal/domain"

type Metrics interface {
	TurnCompleted(mode domain.ResponseMode)
	ToolExecuted(action string, succeeded bool)
	ConfirmationRequested(severity domain.Tier)
	ReachabilityChanged(state domain.Reachability)
	ActiveSessions(count int)
}

type NopMetrics struct{}

func (NopMetrics) TurnCompleted(domain.ResponseMode)       {}
func (NopMetrics) ToolExecuted(string, bool)               {}
func (NopMetrics) ConfirmationRequested(domain.Tier)       {}
func (NopMetrics) ReachabilityChanged(domain.Reachability) {}
func (NopMetrics) ActiveSessions(int)                      {}
