package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces crewd environment overrides.
	envPrefix = "CREWD_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (CREWD_WORKTREES_ROOT, CREWD_EMBEDDINGS_BASE_URL, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// A missing config file is not an error; defaults plus environment apply.
//
// Environment variables map to config keys by stripping the CREWD_ prefix,
// lowercasing, and splitting on the first underscore:
//
//	CREWD_WORKTREES_ROOT        -> worktrees.root
//	CREWD_INDEX_SNAPSHOT_PATH   -> index.snapshot_path
//	CREWD_EMBEDDINGS_BASE_URL   -> embeddings.base_url
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
			}
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// CREWD_WORKTREES_ROOT -> worktrees.root
		// First underscore splits section from field; field keeps its underscores.
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Worktrees.Root == "" {
		cfg.Worktrees.Root = ".crew/worktrees"
	}
	if cfg.Worktrees.BranchPrefix == "" {
		cfg.Worktrees.BranchPrefix = "crew/task-"
	}

	if cfg.Index.SnapshotPath == "" {
		cfg.Index.SnapshotPath = ".crew/index.json"
	}
	if cfg.Index.MaxFileSize == 0 {
		cfg.Index.MaxFileSize = 1024 * 1024 // 1MB
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
