package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  zapcore.Level     `koanf:"level"`
	Format string            `koanf:"format"`
	Caller CallerConfig      `koanf:"caller"`
	Fields map[string]string `koanf:"fields"`
}

// CallerConfig controls caller information in logs.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Caller: CallerConfig{
			Enabled: true,
			Skip:    1,
		},
		Fields: map[string]string{
			"service": "crewd",
		},
	}
}

// Validate checks config invariants.
func (c *Config) Validate() error {
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q (want json or console)", c.Format)
	}
	if c.Caller.Skip < 0 {
		return fmt.Errorf("caller skip must be non-negative, got %d", c.Caller.Skip)
	}
	return nil
}
