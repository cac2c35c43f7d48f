package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds the colors of the probe UI.
type Theme struct {
	Name string

	Text    lipgloss.Color
	Muted   lipgloss.Color
	Surface lipgloss.Color
	Accent  lipgloss.Color
	Border  lipgloss.Color

	// Bars in the Total and Chart views.
	Bar lipgloss.Color

	OK    lipgloss.Color
	Warn  lipgloss.Color
	Error lipgloss.Color
}

// StatusColor returns the color for the HTTP status a measurement reported.
func (t Theme) StatusColor(code int) lipgloss.Color {
	switch {
	case code == 200:
		return t.OK
	case code >= 300 && code < 500:
		return t.Warn
	case code >= 500 || code == 0:
		return t.Error
	default:
		return t.Text
	}
}

// TaskColor returns the color for a task status label.
func (t Theme) TaskColor(status string) lipgloss.Color {
	switch status {
	case "finished":
		return t.OK
	case "cancelled":
		return t.Warn
	case "failed":
		return t.Error
	default:
		return t.Accent
	}
}
