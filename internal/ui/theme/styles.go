package theme

import "github.com/charmbracelet/lipgloss"

// Styles holds pre-computed Lip Gloss styles for the current theme.
type Styles struct {
	FocusedBorder   lipgloss.Style
	UnfocusedBorder lipgloss.Style

	Title      lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Bold       lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Hint       lipgloss.Style
	Selected   lipgloss.Style
	Bar        lipgloss.Style
	StatusBar  lipgloss.Style
	StatusText lipgloss.Style

	TableHeader   lipgloss.Style
	TableSelected lipgloss.Style
}

// NewStyles creates a Styles set from a Theme.
func NewStyles(t Theme) Styles {
	return Styles{
		FocusedBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Accent),
		UnfocusedBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),

		Title:    lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		Normal:   lipgloss.NewStyle().Foreground(t.Text),
		Muted:    lipgloss.NewStyle().Foreground(t.Muted),
		Bold:     lipgloss.NewStyle().Foreground(t.Text).Bold(true),
		Error:    lipgloss.NewStyle().Foreground(t.Error),
		Success:  lipgloss.NewStyle().Foreground(t.OK),
		Warning:  lipgloss.NewStyle().Foreground(t.Warn),
		Hint:     lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		Selected: lipgloss.NewStyle().Foreground(t.Text).Background(t.Surface).Bold(true),
		Bar:      lipgloss.NewStyle().Foreground(t.Bar),
		StatusBar: lipgloss.NewStyle().
			Background(t.Surface),
		StatusText: lipgloss.NewStyle().
			Foreground(t.Text).
			Background(t.Surface).
			Padding(0, 1),

		TableHeader: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Border),
		TableSelected: lipgloss.NewStyle().
			Foreground(t.Text).
			Background(t.Surface),
	}
}
