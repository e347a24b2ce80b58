package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/cipipe/internal/pipeline"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Steps      []pipeline.Step
	ConfigDirs []string // per-module configuration, later directories win
	Retries    int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// Info logs the command line that recreates the run.
	Info bool
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Steps) == 0 {
		return nil, errors.New("Steps is a required configuration field and cannot be empty")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative, got %d", cfg.Retries)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port %d is out of range", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
