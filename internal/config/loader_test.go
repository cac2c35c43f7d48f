package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sadopc/httping/internal/itdog"
)

func writeConfig(t *testing.T, home, body string) string {
	t.Helper()
	configDir := filepath.Join(home, ".config", "httping")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	path := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	got := DefaultConfig()

	if got.Key != itdog.DefaultKey {
		t.Fatalf("Key = %q, want default key", got.Key)
	}
	if got.ChannelCapacity != 128 {
		t.Fatalf("ChannelCapacity = %d, want 128", got.ChannelCapacity)
	}
	if got.TickInterval != 30*time.Millisecond {
		t.Fatalf("TickInterval = %s, want 30ms", got.TickInterval)
	}
	if got.ScriptTimeout != 5*time.Second {
		t.Fatalf("ScriptTimeout = %s, want 5s", got.ScriptTimeout)
	}
	if got.Options("example.com") != itdog.DefaultOptions("example.com") {
		t.Fatalf("Options() = %#v, want DefaultOptions", got.Options("example.com"))
	}
}

func TestLoadReturnsDefaultsWhenConfigMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	got := Load()
	want := DefaultConfig()

	if got != want {
		t.Fatalf("Load() = %#v, want defaults %#v", got, want)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, `
key: my-key
proxy: socks5://127.0.0.1:1080
channel_capacity: 16
timeout: 42s
socket:
  host: ws.example.com
  port: 8443
negotiation:
  line: "1,2"
  redirect_num: 2
  token_begin: 0
  token_end: 16
tls:
  fingerprint: chrome
log:
  level: debug
history:
  enabled: false
`)

	got := Load()

	if got.Key != "my-key" {
		t.Fatalf("Key = %q, want my-key", got.Key)
	}
	if got.Proxy != "socks5://127.0.0.1:1080" {
		t.Fatalf("Proxy = %q", got.Proxy)
	}
	if got.ChannelCapacity != 16 {
		t.Fatalf("ChannelCapacity = %d, want 16", got.ChannelCapacity)
	}
	if got.Timeout != 42*time.Second {
		t.Fatalf("Timeout = %s, want 42s", got.Timeout)
	}
	if got.Socket.Host != "ws.example.com" || got.Socket.Port != 8443 || got.Socket.Path != itdog.DefaultSocketPath {
		t.Fatalf("Socket = %#v", got.Socket)
	}
	opts := got.Options("example.com")
	if opts.Line != "1,2" || opts.RedirectNum != 2 || opts.TokenBegin != 0 || opts.TokenEnd != 16 || opts.CheckMode != "fast" {
		t.Fatalf("Options() = %#v", opts)
	}
	if got.TLS.Fingerprint != "chrome" {
		t.Fatalf("TLS.Fingerprint = %q", got.TLS.Fingerprint)
	}
	if got.Log.Level != "debug" || got.History.Enabled {
		t.Fatalf("Log = %#v History = %#v", got.Log, got.History)
	}
}

func TestLoadInvalidYAMLKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, "key: [\n")

	got := Load()
	want := DefaultConfig()

	if got != want {
		t.Fatalf("Load() = %#v, want defaults %#v", got, want)
	}
}

func TestLoadFileReportsErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadFile() on missing file succeeded")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("key: [\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() on invalid YAML succeeded")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HTTPING_KEY", "env-key")
	t.Setenv("HTTPING_PROXY", "socks5h://proxy:1080")
	t.Setenv("HTTPING_LOG_LEVEL", "trace")
	t.Setenv("HTTPING_CHANNEL_CAPACITY", "4")
	t.Setenv("HTTPING_TIMEOUT", "3s")
	t.Setenv("HTTPING_THEME", "nord")

	got := Load()
	if got.Key != "env-key" || got.Proxy != "socks5h://proxy:1080" || got.Log.Level != "trace" {
		t.Fatalf("string overrides not applied: %#v", got)
	}
	if got.ChannelCapacity != 4 || got.Timeout != 3*time.Second {
		t.Fatalf("numeric overrides not applied: capacity=%d timeout=%s", got.ChannelCapacity, got.Timeout)
	}
	if got.Theme != "nord" {
		t.Fatalf("Theme = %q, want nord", got.Theme)
	}
}

func TestEnvOverrideIgnoresBadNumbers(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HTTPING_CHANNEL_CAPACITY", "lots")
	t.Setenv("HTTPING_TIMEOUT", "soon")

	got := Load()
	if got.ChannelCapacity != 128 || got.Timeout != 2*time.Minute {
		t.Fatalf("bad env values changed config: capacity=%d timeout=%s", got.ChannelCapacity, got.Timeout)
	}
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	cfg := DefaultConfig()
	if got := cfg.HistoryPath(); got != filepath.Join("/data", "httping", "history.db") {
		t.Fatalf("HistoryPath() = %q", got)
	}
	cfg.History.Path = "/tmp/h.db"
	if got := cfg.HistoryPath(); got != "/tmp/h.db" {
		t.Fatalf("HistoryPath() = %q", got)
	}
	if got := cfg.LogPath(); got != filepath.Join("/data", "httping", "httping.log") {
		t.Fatalf("LogPath() = %q", got)
	}
	if got := ThemesDir(); got != filepath.Join("/data", "httping", "themes") {
		t.Fatalf("ThemesDir() = %q", got)
	}
}
