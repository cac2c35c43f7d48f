package theme

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CatppuccinMocha is the default dark theme.
var CatppuccinMocha = Theme{
	Name:    "Catppuccin Mocha",
	Text:    lipgloss.Color("#cdd6f4"),
	Muted:   lipgloss.Color("#585b70"),
	Surface: lipgloss.Color("#313244"),
	Accent:  lipgloss.Color("#cba6f7"),
	Border:  lipgloss.Color("#45475a"),
	Bar:     lipgloss.Color("#89b4fa"),
	OK:      lipgloss.Color("#a6e3a1"),
	Warn:    lipgloss.Color("#f9e2af"),
	Error:   lipgloss.Color("#f38ba8"),
}

var CatppuccinLatte = Theme{
	Name:    "Catppuccin Latte",
	Text:    lipgloss.Color("#4c4f69"),
	Muted:   lipgloss.Color("#8c8fa1"),
	Surface: lipgloss.Color("#ccd0da"),
	Accent:  lipgloss.Color("#8839ef"),
	Border:  lipgloss.Color("#8c8fa1"),
	Bar:     lipgloss.Color("#1e66f5"),
	OK:      lipgloss.Color("#40a02b"),
	Warn:    lipgloss.Color("#df8e1d"),
	Error:   lipgloss.Color("#d20f39"),
}

var Nord = Theme{
	Name:    "Nord",
	Text:    lipgloss.Color("#eceff4"),
	Muted:   lipgloss.Color("#4c566a"),
	Surface: lipgloss.Color("#3b4252"),
	Accent:  lipgloss.Color("#88c0d0"),
	Border:  lipgloss.Color("#4c566a"),
	Bar:     lipgloss.Color("#81a1c1"),
	OK:      lipgloss.Color("#a3be8c"),
	Warn:    lipgloss.Color("#ebcb8b"),
	Error:   lipgloss.Color("#bf616a"),
}

var Dracula = Theme{
	Name:    "Dracula",
	Text:    lipgloss.Color("#f8f8f2"),
	Muted:   lipgloss.Color("#6272a4"),
	Surface: lipgloss.Color("#44475a"),
	Accent:  lipgloss.Color("#bd93f9"),
	Border:  lipgloss.Color("#6272a4"),
	Bar:     lipgloss.Color("#8be9fd"),
	OK:      lipgloss.Color("#50fa7b"),
	Warn:    lipgloss.Color("#f1fa8c"),
	Error:   lipgloss.Color("#ff5555"),
}

var GruvboxDark = Theme{
	Name:    "Gruvbox Dark",
	Text:    lipgloss.Color("#ebdbb2"),
	Muted:   lipgloss.Color("#665c54"),
	Surface: lipgloss.Color("#3c3836"),
	Accent:  lipgloss.Color("#b16286"),
	Border:  lipgloss.Color("#665c54"),
	Bar:     lipgloss.Color("#458588"),
	OK:      lipgloss.Color("#98971a"),
	Warn:    lipgloss.Color("#d79921"),
	Error:   lipgloss.Color("#cc241d"),
}

var TokyoNight = Theme{
	Name:    "Tokyo Night",
	Text:    lipgloss.Color("#c0caf5"),
	Muted:   lipgloss.Color("#565f89"),
	Surface: lipgloss.Color("#292e42"),
	Accent:  lipgloss.Color("#bb9af7"),
	Border:  lipgloss.Color("#565f89"),
	Bar:     lipgloss.Color("#7aa2f7"),
	OK:      lipgloss.Color("#9ece6a"),
	Warn:    lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
}

// Catalog maps theme names to themes.
var Catalog = map[string]Theme{}

func init() {
	for _, t := range []Theme{CatppuccinMocha, CatppuccinLatte, Nord, Dracula, GruvboxDark, TokyoNight} {
		Catalog[normalizeKey(t.Name)] = t
	}
}

// Default returns the default theme.
func Default() Theme {
	return CatppuccinMocha
}

// Get returns a built-in theme by name.
func Get(name string) (Theme, bool) {
	t, ok := Catalog[normalizeKey(name)]
	return t, ok
}

// Names returns the built-in theme names, sorted.
func Names() []string {
	names := make([]string, 0, len(Catalog))
	for _, t := range Catalog {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up a theme by name: built-ins, then YAML themes in
// customDir, then the default.
func Resolve(name, customDir string) Theme {
	if name == "" {
		return Default()
	}
	if t, ok := Get(name); ok {
		return t
	}
	if customDir != "" {
		if t, ok := LoadCustomThemes(customDir)[normalizeKey(name)]; ok {
			return t
		}
	}
	return Default()
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
}
