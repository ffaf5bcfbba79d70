// Package config provides configuration loading for crewd.
package config

import (
	"fmt"
	"path/filepath"
)

// Config is the root crewd configuration.
type Config struct {
	Worktrees  WorktreesConfig  `koanf:"worktrees"`
	Index      IndexConfig      `koanf:"index"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Logging    LoggingConfig    `koanf:"logging"`
	Roles      []RoleConfig     `koanf:"roles"`
}

// WorktreesConfig controls where task worktrees live and how branches are named.
type WorktreesConfig struct {
	// Root is the directory holding per-task worktrees.
	// Relative paths resolve against the repository root.
	Root string `koanf:"root"`

	// BranchPrefix prefixes task branch names.
	BranchPrefix string `koanf:"branch_prefix"`

	// BaseRef is the ref new task branches fork from.
	// Empty means the repository's current default branch tip.
	BaseRef string `koanf:"base_ref"`
}

// IndexConfig controls the code index.
type IndexConfig struct {
	// SnapshotPath is the on-disk index snapshot file.
	SnapshotPath string `koanf:"snapshot_path"`

	// IncludePatterns are glob patterns for files to index (empty means all tracked files).
	IncludePatterns []string `koanf:"include_patterns"`

	// ExcludePatterns take precedence over include patterns.
	ExcludePatterns []string `koanf:"exclude_patterns"`

	// MaxFileSize is the largest file (bytes) the scanner will read.
	MaxFileSize int64 `koanf:"max_file_size"`
}

// EmbeddingsConfig controls the optional embedding provider.
type EmbeddingsConfig struct {
	// Enabled turns semantic indexing on. Keyword search works regardless.
	Enabled bool `koanf:"enabled"`

	// BaseURL is the OpenAI-compatible embedding endpoint.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// APIKey is optional for local TEI-style servers.
	APIKey string `koanf:"api_key"`
}

// LoggingConfig mirrors logging.Config in koanf-friendly form.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RoleConfig declares an agent role and which roles may hand work off to it.
type RoleConfig struct {
	Name        string   `koanf:"name"`
	AcceptsFrom []string `koanf:"accepts_from"`
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Worktrees.Root == "" {
		return fmt.Errorf("worktrees.root is required")
	}
	if c.Worktrees.BranchPrefix == "" {
		return fmt.Errorf("worktrees.branch_prefix is required")
	}
	if c.Index.MaxFileSize <= 0 {
		return fmt.Errorf("index.max_file_size must be positive, got %d", c.Index.MaxFileSize)
	}
	if c.Embeddings.Enabled && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings.base_url is required when embeddings are enabled")
	}
	for _, role := range c.Roles {
		if role.Name == "" {
			return fmt.Errorf("roles entries require a name")
		}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// ResolvePaths resolves relative worktree/index paths against repoRoot.
func (c *Config) ResolvePaths(repoRoot string) {
	if !filepath.IsAbs(c.Worktrees.Root) {
		c.Worktrees.Root = filepath.Join(repoRoot, c.Worktrees.Root)
	}
	if c.Index.SnapshotPath != "" && !filepath.IsAbs(c.Index.SnapshotPath) {
		c.Index.SnapshotPath = filepath.Join(repoRoot, c.Index.SnapshotPath)
	}
}
