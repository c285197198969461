// Package tui renders the supervisor status panel shown by the launcher on
// interactive terminals.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Color palette - matches the fatih/color event printer
var (
	ColorSuccess = lipgloss.Color("#22c55e") // Green
	ColorError   = lipgloss.Color("#ef4444") // Red
	ColorWarning = lipgloss.Color("#eab308") // Yellow
	ColorInfo    = lipgloss.Color("#06b6d4") // Cyan
	ColorMuted   = lipgloss.Color("#6b7280") // Gray
)

// Text styles
var (
	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Width(14)

	ValueStyle = lipgloss.NewStyle()

	BoldStyle = lipgloss.NewStyle().
			Bold(true)
)

// Box styles
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorInfo).
			Padding(0, 1)

	ErrorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorError).
			Padding(0, 1)

	SuccessBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSuccess).
			Padding(0, 1)
)

// TitleStyle creates a styled title for boxes
func TitleStyle(title string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(ColorInfo).
		Bold(true).
		SetString(title)
}

// StateColor maps a node service state onto the palette.
func StateColor(st types.NodeServiceState) lipgloss.Color {
	switch st {
	case types.NodeStateAttached:
		return ColorSuccess
	case types.NodeStateStartingDaemon, types.NodeStateConnecting:
		return ColorInfo
	case types.NodeStateStopping:
		return ColorWarning
	}
	return ColorMuted
}

// SeverityColor maps a notification severity onto the palette.
func SeverityColor(sev types.Severity) lipgloss.Color {
	switch sev {
	case types.SeveritySuccess:
		return ColorSuccess
	case types.SeverityWarning:
		return ColorWarning
	case types.SeverityError:
		return ColorError
	}
	return ColorInfo
}

// boxFor picks the panel frame: red with an error, green when attached.
func boxFor(snap types.NodeSnapshot) lipgloss.Style {
	switch {
	case snap.Error != "":
		return ErrorBoxStyle
	case snap.State == types.NodeStateAttached && snap.IsSynced:
		return SuccessBoxStyle
	}
	return BoxStyle
}
