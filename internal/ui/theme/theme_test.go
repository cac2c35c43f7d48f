package theme

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeKey(t *testing.T) {
	got := normalizeKey("  Catppuccin Mocha  ")
	if got != "catppuccin-mocha" {
		t.Fatalf("normalizeKey() = %q, want catppuccin-mocha", got)
	}
}

func TestGetBuiltInTheme(t *testing.T) {
	got, ok := Get("  tokyo night ")
	if !ok {
		t.Fatal("expected built-in theme to be found")
	}
	if got.Name != "Tokyo Night" {
		t.Fatalf("theme name = %q, want Tokyo Night", got.Name)
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	if len(names) != 6 {
		t.Fatalf("expected 6 built-in themes, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Names() not sorted: %v", names)
		}
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	yaml := "name: Ocean Breeze\nbar: \"#001122\"\n"
	if err := os.WriteFile(filepath.Join(dir, "ocean.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	if got := Resolve("dracula", dir); got.Name != "Dracula" {
		t.Fatalf("Resolve(dracula) = %q", got.Name)
	}
	got := Resolve("ocean breeze", dir)
	if got.Name != "Ocean Breeze" || got.Bar != "#001122" {
		t.Fatalf("Resolve(custom) = %+v", got)
	}
	// Colors the file leaves out come from the default theme.
	if got.OK != CatppuccinMocha.OK {
		t.Fatalf("OK = %q, want default %q", got.OK, CatppuccinMocha.OK)
	}
	if got := Resolve("not-a-real-theme", dir); got.Name != CatppuccinMocha.Name {
		t.Fatalf("Resolve(unknown) = %q", got.Name)
	}
	if got := Resolve("", ""); got.Name != CatppuccinMocha.Name {
		t.Fatalf("Resolve(empty) = %q", got.Name)
	}
}

func TestLoadCustomThemeUsesFilenameWhenNameMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my-theme.yaml")
	if err := os.WriteFile(path, []byte("text: \"#eeeeee\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadCustomTheme(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "my-theme" || got.Text != "#eeeeee" {
		t.Fatalf("LoadCustomTheme() = %+v", got)
	}
}

func TestLoadCustomThemesSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"forest.yaml": "name: Forest\n",
		"broken.yaml": "name: [\n",
		"readme.txt":  "ignore me",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	themes := LoadCustomThemes(dir)
	if len(themes) != 1 {
		t.Fatalf("LoadCustomThemes() loaded %d themes, want 1", len(themes))
	}
	if _, ok := themes["forest"]; !ok {
		t.Fatalf("expected Forest theme, got %v", themes)
	}
}

func TestStatusColors(t *testing.T) {
	th := Default()
	cases := []struct {
		code int
		want string
	}{
		{200, string(th.OK)},
		{301, string(th.Warn)},
		{404, string(th.Warn)},
		{502, string(th.Error)},
		{0, string(th.Error)},
		{204, string(th.Text)},
	}
	for _, c := range cases {
		if got := th.StatusColor(c.code); string(got) != c.want {
			t.Errorf("StatusColor(%d) = %q, want %q", c.code, got, c.want)
		}
	}
	if th.TaskColor("failed") != th.Error || th.TaskColor("running") != th.Accent {
		t.Error("unexpected task colors")
	}
}
