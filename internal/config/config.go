package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sadopc/httping/internal/core/tlsconf"
	"github.com/sadopc/httping/internal/itdog"
)

// Config holds the application configuration.
type Config struct {
	Key             string            `yaml:"key"`
	NegotiateURL    string            `yaml:"negotiate_url"`
	Socket          SocketConfig      `yaml:"socket"`
	Negotiation     NegotiationConfig `yaml:"negotiation"`
	TLS             tlsconf.Config    `yaml:"tls"`
	Proxy           string            `yaml:"proxy"`
	ChannelCapacity int               `yaml:"channel_capacity"`
	TickInterval    time.Duration     `yaml:"tick_interval"`
	Timeout         time.Duration     `yaml:"timeout"`
	ScriptTimeout   time.Duration     `yaml:"script_timeout"`
	Log             LogConfig         `yaml:"log"`
	History         HistoryConfig     `yaml:"history"`
	CookiesFile     string            `yaml:"cookies_file"`
	Theme           string            `yaml:"theme"`
}

// SocketConfig locates the measurement stream.
type SocketConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Path   string `yaml:"path"`
	Origin string `yaml:"origin"`
}

// NegotiationConfig holds the form fields sent with every probe.
type NegotiationConfig struct {
	Line          string `yaml:"line"`
	CheckMode     string `yaml:"check_mode"`
	IPv4          string `yaml:"ipv4"`
	Method        string `yaml:"method"`
	Referer       string `yaml:"referer"`
	UserAgent     string `yaml:"user_agent"`
	Cookies       string `yaml:"cookies"`
	RedirectNum   int    `yaml:"redirect_num"`
	DNSServerType string `yaml:"dns_server_type"`
	DNSServer     string `yaml:"dns_server"`
	TokenBegin    int    `yaml:"token_begin"`
	TokenEnd      int    `yaml:"token_end"`
}

// LogConfig controls the logger. An empty File means stderr.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// HistoryConfig controls the run history store. An empty Path means the
// default location under the data directory.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	opts := itdog.DefaultOptions("")
	return Config{
		Key:          itdog.DefaultKey,
		NegotiateURL: itdog.DefaultNegotiateURL,
		Socket: SocketConfig{
			Host:   itdog.DefaultSocketHost,
			Port:   itdog.DefaultSocketPort,
			Path:   itdog.DefaultSocketPath,
			Origin: "https://www.itdog.cn",
		},
		Negotiation: NegotiationConfig{
			CheckMode:     opts.CheckMode,
			Method:        opts.Method,
			RedirectNum:   opts.RedirectNum,
			DNSServerType: opts.DNSServerType,
			TokenBegin:    opts.TokenBegin,
			TokenEnd:      opts.TokenEnd,
		},
		ChannelCapacity: 128,
		TickInterval:    30 * time.Millisecond,
		Timeout:         2 * time.Minute,
		ScriptTimeout:   5 * time.Second,
		Log:             LogConfig{Level: "info"},
		History:         HistoryConfig{Enabled: true},
		Theme:           "catppuccin-mocha",
	}
}

// Options returns the negotiation form for host.
func (c Config) Options(host string) itdog.Options {
	n := c.Negotiation
	return itdog.Options{
		Line:          n.Line,
		Host:          host,
		CheckMode:     n.CheckMode,
		IPv4:          n.IPv4,
		Method:        n.Method,
		Referer:       n.Referer,
		UserAgent:     n.UserAgent,
		Cookies:       n.Cookies,
		RedirectNum:   n.RedirectNum,
		DNSServerType: n.DNSServerType,
		DNSServer:     n.DNSServer,
		TokenBegin:    n.TokenBegin,
		TokenEnd:      n.TokenEnd,
	}
}

// DataDir is where history, cookies and the TUI log live.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "httping")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "httping")
	}
	return filepath.Join(home, ".local", "share", "httping")
}

// HistoryPath returns the configured history database or the default one.
func (c Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(DataDir(), "history.db")
}

// CookiesPath returns the configured cookie file or the default one.
func (c Config) CookiesPath() string {
	if c.CookiesFile != "" {
		return c.CookiesFile
	}
	return filepath.Join(DataDir(), "cookies.json")
}

// LogPath returns the log file used when stderr is not available.
func (c Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(DataDir(), "httping.log")
}

// ThemesDir holds custom YAML themes.
func ThemesDir() string {
	return filepath.Join(DataDir(), "themes")
}
