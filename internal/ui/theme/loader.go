package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// yamlTheme is the YAML representation of a theme. Missing colors are taken
// from the default theme.
type yamlTheme struct {
	Name    string `yaml:"name"`
	Text    string `yaml:"text"`
	Muted   string `yaml:"muted"`
	Surface string `yaml:"surface"`
	Accent  string `yaml:"accent"`
	Border  string `yaml:"border"`
	Bar     string `yaml:"bar"`
	OK      string `yaml:"ok"`
	Warn    string `yaml:"warn"`
	Error   string `yaml:"error"`
}

// LoadCustomTheme loads a theme from a YAML file.
func LoadCustomTheme(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, fmt.Errorf("reading theme file: %w", err)
	}

	var yt yamlTheme
	if err := yaml.Unmarshal(data, &yt); err != nil {
		return Theme{}, fmt.Errorf("parsing theme YAML: %w", err)
	}

	if yt.Name == "" {
		base := filepath.Base(path)
		yt.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	t := Default()
	t.Name = yt.Name
	set := func(dst *lipgloss.Color, v string) {
		if v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	set(&t.Text, yt.Text)
	set(&t.Muted, yt.Muted)
	set(&t.Surface, yt.Surface)
	set(&t.Accent, yt.Accent)
	set(&t.Border, yt.Border)
	set(&t.Bar, yt.Bar)
	set(&t.OK, yt.OK)
	set(&t.Warn, yt.Warn)
	set(&t.Error, yt.Error)
	return t, nil
}

// LoadCustomThemes loads all YAML themes from a directory.
func LoadCustomThemes(dir string) map[string]Theme {
	themes := make(map[string]Theme)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return themes
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		t, err := LoadCustomTheme(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		themes[normalizeKey(t.Name)] = t
	}
	return themes
}
