package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/berth-dev/focus/internal/store"
	"github.com/berth-dev/focus/internal/timer"
)

// Color constants.
const (
	primaryColor   = "#7C3AED" // Purple
	secondaryColor = "#10B981" // Green
	warningColor   = "#F59E0B" // Amber
	errorColor     = "#EF4444" // Red
	dimColor       = "#6B7280" // Gray
	infoColor      = "#3B82F6" // Blue
)

// Style variables for consistent rendering.
var (
	// BoxStyle provides a rounded border box with primary color.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(0, 1)

	// TitleStyle renders titles in primary color with bold.
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// SelectedStyle highlights the selected task.
	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// DimStyle renders dim/muted text.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	// SuccessStyle renders success messages in green.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	// ErrorStyle renders error messages in red.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	// WarningStyle renders warning messages in amber.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	// ClockStyle renders the countdown.
	ClockStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2)

	// StatusBarStyle provides styling for the status bar.
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	// ProgressFullStyle renders filled progress cells.
	ProgressFullStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(secondaryColor))

	// ProgressEmptyStyle renders empty progress cells.
	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(dimColor))
)

// quadrantColors gives each matrix quadrant its border color.
var quadrantColors = map[store.Quadrant]string{
	store.UrgentImportant:    errorColor,
	store.ImportantNotUrgent: secondaryColor,
	store.UrgentNotImportant: warningColor,
	store.Neither:            dimColor,
}

// quadrantBox returns the box style for q, highlighted when focused.
func quadrantBox(q store.Quadrant, focused bool, width int) lipgloss.Style {
	s := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(quadrantColors[q])).
		Padding(0, 1).
		Width(width)
	if focused {
		s = s.BorderStyle(lipgloss.ThickBorder())
	}
	return s
}

// stateStyle colors the engine state label.
func stateStyle(s timer.State) lipgloss.Style {
	switch s {
	case timer.Running:
		return SuccessStyle
	case timer.Paused, timer.Interrupted:
		return WarningStyle
	case timer.Abandoned:
		return ErrorStyle
	case timer.Completed, timer.ForceCompleted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(infoColor))
	default:
		return DimStyle
	}
}
