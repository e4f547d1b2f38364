package sched

import (
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/rs/zerolog"
)

// Config mirrors config.yml
type Config struct {
	StatusBuffer    int    `yaml:"status_buffer"`    // 256 (by default)
	TraceCSV        string `yaml:"trace_csv"`        // empty disables CSV tracing
	LogLevel        string `yaml:"log_level"`        // "warn" (by default)
	ReportUnhandled bool   `yaml:"report_unhandled"` // true (by default)
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		StatusBuffer:    256,
		TraceCSV:        "",
		LogLevel:        "warn",
		ReportUnhandled: true,
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	if cfg.StatusBuffer <= 0 {
		cfg.StatusBuffer = 256
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		cfg.LogLevel = "warn"
	}

	return cfg
}
