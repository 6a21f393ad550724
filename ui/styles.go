package ui

import "github.com/charmbracelet/lipgloss"

var (
	green    = lipgloss.Color("#04B575")
	fuchsia  = lipgloss.Color("#EE6FF8")
	gray     = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	darkGray = lipgloss.AdaptiveColor{Light: "#DDDADA", Dark: "#3C3C3C"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)

	cellStyle     = lipgloss.NewStyle()
	selectedStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true).Underline(true)
	playingStyle  = lipgloss.NewStyle().Foreground(green).Bold(true)
	romajiStyle   = lipgloss.NewStyle().Foreground(gray)

	footerStyle = lipgloss.NewStyle().
			Foreground(gray).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(darkGray)

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Bold(true)
)
