// Package config loads runtime defaults from the environment.
// Command-line flags take precedence; the environment covers CI
// installs where flags are awkward to thread through.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-tunable settings.
type Config struct {
	Mode             string        `env:"ACTSAFE_MODE" envDefault:"hybrid"`
	SolverTimeout    time.Duration `env:"ACTSAFE_SOLVER_TIMEOUT" envDefault:"5s"`
	Workers          int           `env:"ACTSAFE_WORKERS" envDefault:"4"`
	RewriteRules     string        `env:"ACTSAFE_REWRITE_RULES"`
	StructuralWeight float64       `env:"ACTSAFE_STRUCTURAL_WEIGHT" envDefault:"0.6"`
	LogicalWeight    float64       `env:"ACTSAFE_LOGICAL_WEIGHT" envDefault:"0.4"`
	LogLevel         string        `env:"ACTSAFE_LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("load environment config: %w", err)
	}
	return cfg, nil
}
