package menu

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	cursor   lipgloss.Style
	row      lipgloss.Style
	faint    lipgloss.Style
	favorite lipgloss.Style
	detached lipgloss.Style
	status   lipgloss.Style
	err      lipgloss.Style
}

func newStyles(colors bool) styles {
	if !colors {
		plain := lipgloss.NewStyle()
		return styles{
			title:    plain.Bold(true),
			cursor:   plain.Reverse(true),
			row:      plain,
			faint:    plain,
			favorite: plain,
			detached: plain,
			status:   plain,
			err:      plain,
		}
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		cursor:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")),
		row:      lipgloss.NewStyle(),
		faint:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		favorite: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		detached: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
