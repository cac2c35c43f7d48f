package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Path returns ~/.config/httping/config.yaml.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "httping", "config.yaml"), nil
}

// Load loads configuration from ~/.config/httping/config.yaml, then applies
// HTTPING_* environment overrides. A missing or broken file leaves the
// defaults in place.
func Load() Config {
	cfg := DefaultConfig()

	if path, err := Path(); err == nil {
		if data, err := os.ReadFile(path); err == nil {
			fromFile := cfg
			if yaml.Unmarshal(data, &fromFile) == nil {
				cfg = fromFile
			}
		}
	}

	applyEnv(&cfg)
	return cfg
}

// LoadFile loads an explicit configuration file over the defaults and
// reports read or parse errors.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Key = getEnv("HTTPING_KEY", cfg.Key)
	cfg.Proxy = getEnv("HTTPING_PROXY", cfg.Proxy)
	cfg.Log.Level = getEnv("HTTPING_LOG_LEVEL", cfg.Log.Level)
	cfg.Theme = getEnv("HTTPING_THEME", cfg.Theme)
	cfg.ChannelCapacity = getEnvInt("HTTPING_CHANNEL_CAPACITY", cfg.ChannelCapacity)
	cfg.Timeout = getEnvDuration("HTTPING_TIMEOUT", cfg.Timeout)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}
