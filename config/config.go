// Package config loads the server configuration from a YAML file and
// applies environment overrides on top.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the server process.
type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string `yaml:"addr"`
	// DataRoot is the directory the store keeps its files under.
	DataRoot string `yaml:"data_root"`
	// TmpPassword guards the encryption key file. Empty disables
	// storage encryption.
	TmpPassword string `yaml:"tmp_password"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// RateLimit is the sustained requests-per-second budget per client.
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the per-client burst allowance.
	RateBurst int `yaml:"rate_burst"`
	// LoopCap bounds flow loop iterations.
	LoopCap int `yaml:"loop_cap"`
	// JWTSecret signs and verifies route auth tokens.
	JWTSecret string `yaml:"jwt_secret"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Addr:      ":8080",
		DataRoot:  "forge-data",
		LogLevel:  "info",
		RateLimit: 50,
		RateBurst: 100,
		LoopCap:   10000,
	}
}

// LoadFromFile reads a YAML configuration file. An empty path yields
// the defaults. Environment overrides apply either way.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets the environment override the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("FORGE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("CURRENT_PATH"); v != "" {
		c.DataRoot = v
	}
	if v := os.Getenv("TMP_PASSWORD"); v != "" {
		c.TmpPassword = v
	}
	if v := os.Getenv("FORGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FORGE_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
}

// Level maps the configured log level onto slog.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
