package chatpanel

import "github.com/charmbracelet/lipgloss"

type styles struct {
	frame     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	badge     lipgloss.Style
	emotion   lipgloss.Style
	body      lipgloss.Style
	error     lipgloss.Style
	hint      lipgloss.Style
	recording lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("240")).
			Padding(0, 1),
		emotion:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		body:      lipgloss.NewStyle(),
		error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		hint:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		recording: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
}
