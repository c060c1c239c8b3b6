package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Primary   = lipgloss.Color("#22d3ee") // cyan accent
	Secondary = lipgloss.Color("#7C3AED") // violet
	Success   = lipgloss.Color("#10B981") // emerald
	Warning   = lipgloss.Color("#F59E0B") // amber
	ErrColor  = lipgloss.Color("#EF4444") // red
	Muted     = lipgloss.Color("#6B7280") // gray
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SelfStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(Primary).
				Bold(true).
				Padding(0, 1)

	TableRowStyle = lipgloss.NewStyle().
			Padding(0, 1)
)
