package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bnema/cuedesk/internal/application"
	"github.com/bnema/cuedesk/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
}

// StatusView is what /status and `config show` print.
type StatusView struct {
	Settings       domain.Settings
	Reachability   domain.Reachability
	ActiveSessions int
	AuditEntries   int
}

// Response renders a finished turn.
func Response(resp application.Response) string {
	s := newStyles()
	return renderResponse(resp, s)
}

// Event renders one stream event. Text fragments come back unstyled so they
// can be printed as they arrive; the done event renders nothing because its
// text was already streamed.
func Event(event application.Event) string {
	s := newStyles()

	switch event.Type {
	case application.EventText:
		return event.Text
	case application.EventTools:
		names := make([]string, 0, len(event.Calls))
		for _, call := range event.Calls {
			names = append(names, call.Name)
		}
		return "\n" + s.action.Render("-> "+strings.Join(names, ", ")) + "\n"
	case application.EventToolStatus:
		return renderToolStatus(event, s) + "\n"
	case application.EventConfirmationRequired:
		return "\n" + s.warning.Render(fmt.Sprintf("[%s] confirmation required", event.Severity)) + "\n"
	case application.EventDone:
		if event.Response == nil {
			return "\n"
		}
		return "\n" + badge(event.Response.Mode, s) + "\n"
	default:
		return ""
	}
}

func renderResponse(resp application.Response, s styles) string {
	lines := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, badge(resp.Mode, s), " ", s.message.Render(resp.Message)),
	}
	if len(resp.Actions) > 0 {
		lines = append(lines, s.action.Render("actions: "+strings.Join(resp.Actions, ", ")))
	}
	if resp.NeedsConfirmation {
		lines = append(lines, s.warning.Render("Reply yes to proceed or no to cancel."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderToolStatus(event application.Event, s styles) string {
	switch event.Status {
	case application.ToolStarted:
		return s.meta.Render("   " + event.Tool + " ...")
	case application.ToolErrored:
		return s.toolError.Render("   " + event.Tool + ": " + event.Message)
	default:
		label := event.Tool
		if event.Message != "" {
			label += ": " + event.Message
		}
		return s.toolOK.Render("   " + label)
	}
}

func badge(mode domain.ResponseMode, s styles) string {
	label := "[" + string(mode) + "]"
	switch mode {
	case domain.ResponseOnline:
		return s.online.Render(label)
	case domain.ResponseConfirmed:
		return s.confirmed.Render(label)
	case domain.ResponseCancelled:
		return s.cancelled.Render(label)
	default:
		return s.offline.Render(label)
	}
}

func renderAudit(entries []domain.AuditEntry, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Audit log"),
		s.header.Render(fmt.Sprintf("entries: %d", len(entries))),
	}
	if len(entries) == 0 {
		lines = append(lines, s.empty.Render("No actions recorded."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, entry := range entries {
		lines = append(lines, auditLine(entry, opts, s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func auditLine(entry domain.AuditEntry, opts RenderOptions, s styles) string {
	outcome := s.succeeded.Render("ok  ")
	if !entry.Succeeded {
		outcome = s.failed.Render("fail")
	}

	parts := []string{
		s.meta.Render(formatWhen(entry.Timestamp, opts.Now)),
		outcome,
		s.action.Render(entry.Action),
	}
	if params := formatParams(entry.Params); params != "" {
		parts = append(parts, s.meta.Render(params))
	}
	parts = append(parts, s.message.Render(entry.Message), s.meta.Render("("+entry.SessionID+")"))
	return strings.Join(parts, " ")
}

func renderStatus(view StatusView, s styles) string {
	reasoning := view.Settings.Reasoning
	lines := []string{
		s.title.Render("cuedesk"),
		fmt.Sprintf("mode:          %s", view.Settings.Mode),
		fmt.Sprintf("reachability:  %s", reachabilityLabel(view.Reachability, s)),
		fmt.Sprintf("model:         %s", reasoning.Model),
		fmt.Sprintf("endpoint:      %s", reasoning.Endpoint),
		fmt.Sprintf("max tokens:    %d", reasoning.MaxTokens),
		fmt.Sprintf("temperature:   %g", reasoning.Temperature),
		fmt.Sprintf("timeout:       %s", reasoning.Timeout),
		fmt.Sprintf("sessions:      %d", view.ActiveSessions),
		fmt.Sprintf("audit entries: %d", view.AuditEntries),
	}
	if !view.Settings.UpdatedAt.IsZero() {
		lines = append(lines, s.meta.Render("updated "+view.Settings.UpdatedAt.Format(time.RFC3339)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func reachabilityLabel(state domain.Reachability, s styles) string {
	switch state {
	case domain.ReachabilityReachable:
		return s.succeeded.Render(state.String())
	case domain.ReachabilityUnreachable:
		return s.failed.Render(state.String())
	default:
		return s.meta.Render(state.String())
	}
}

func formatWhen(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return "--:--:--"
	}
	if now.IsZero() {
		return ts.Format(time.RFC3339)
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := ts.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return ts.Format("15:04:05")
	}
	return ts.Format("02 Jan 15:04")
}

func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, params[key]))
	}
	return "{" + strings.Join(pairs, " ") + "}"
}
