package chat

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	message   lipgloss.Style
	online    lipgloss.Style
	offline   lipgloss.Style
	confirmed lipgloss.Style
	cancelled lipgloss.Style
	warning   lipgloss.Style
	action    lipgloss.Style
	toolOK    lipgloss.Style
	toolError lipgloss.Style
	empty     lipgloss.Style
	meta      lipgloss.Style
	succeeded lipgloss.Style
	failed    lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		message:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		online:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		offline:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		confirmed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		cancelled: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		action:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		toolOK:    lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		toolError: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		empty:     lipgloss.NewStyle().Faint(true),
		meta:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		succeeded: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
}
