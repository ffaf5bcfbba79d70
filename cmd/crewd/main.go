// Package main implements the crewd CLI for manual operations against a
// coordination session: inspecting agent state, rebuilding the code index
// and reading provenance history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/crewd/internal/config"
	"github.com/fyrsmithlabs/crewd/internal/embeddings"
	"github.com/fyrsmithlabs/crewd/internal/index"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/orchestrator"
	"github.com/fyrsmithlabs/crewd/internal/provenance"
	"github.com/fyrsmithlabs/crewd/internal/registry"
)

var (
	configPath string
	repoRoot   string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "crewd",
	Short:   "Coordinate agent roles over git worktrees",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML")
	rootCmd.PersistentFlags().StringVar(&repoRoot, "repo", ".", "repository root")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(historyCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the agent state snapshot as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		defer logger.Sync()

		orch, err := newOrchestrator(cfg, nil)
		if err != nil {
			return err
		}
		return printJSON(cmd, orch.SystemState())
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the code index and print its stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		defer logger.Sync()

		idx, err := openIndex(cfg, logger)
		if err != nil {
			return err
		}
		if err := idx.Rebuild(context.Background()); err != nil {
			return err
		}
		return printJSON(cmd, idx.Stats())
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the code index (semantic when embeddings are enabled, keyword otherwise)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		defer logger.Sync()

		idx, err := openIndex(cfg, logger)
		if err != nil {
			return err
		}
		orch, err := newOrchestrator(cfg, idx)
		if err != nil {
			return err
		}
		entries, err := orch.GatherContext(context.Background(), args[0], 10)
		if err != nil {
			return err
		}
		return printJSON(cmd, entries)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [worktree-path]",
	Short: "Print the provenance-enhanced commit history of a worktree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := repoRoot
		if len(args) == 1 {
			path = args[0]
		}
		committer := provenance.NewCommitter(logging.NewNop())
		history, err := committer.History(context.Background(), path)
		if err != nil {
			return err
		}
		return printJSON(cmd, history)
	},
}

func openIndex(cfg *config.Config, logger *logging.Logger) (*index.Index, error) {
	var provider embeddings.Provider
	if cfg.Embeddings.Enabled {
		svc, err := embeddings.NewService(embeddings.Config{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
			APIKey:  cfg.Embeddings.APIKey,
		})
		if err != nil {
			return nil, err
		}
		provider = svc
	}

	return index.New(index.Config{
		Root:            repoRoot,
		SnapshotPath:    cfg.Index.SnapshotPath,
		IncludePatterns: cfg.Index.IncludePatterns,
		ExcludePatterns: cfg.Index.ExcludePatterns,
		MaxFileSize:     cfg.Index.MaxFileSize,
	}, provider, logger)
}

func newOrchestrator(cfg *config.Config, idx *index.Index) (*orchestrator.Orchestrator, error) {
	reg, err := registry.New(rolesFrom(cfg))
	if err != nil {
		return nil, err
	}
	return orchestrator.New(reg, orchestrator.Services{Index: idx}, logging.NewNop())
}

// rolesFrom maps configured roles onto registry roles, defaulting to the
// planner/coder/reviewer chain when none are configured.
func rolesFrom(cfg *config.Config) []registry.Role {
	if len(cfg.Roles) == 0 {
		return registry.DefaultRoles()
	}
	roles := make([]registry.Role, len(cfg.Roles))
	for i, rc := range cfg.Roles {
		role := registry.Role{Name: registry.RoleName(rc.Name)}
		for _, from := range rc.AcceptsFrom {
			role.AcceptsFrom = append(role.AcceptsFrom, registry.RoleName(from))
		}
		roles[i] = role
	}
	return roles
}

func load() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.ResolvePaths(repoRoot)

	logCfg := logging.NewDefaultConfig()
	logCfg.Format = cfg.Logging.Format
	if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
		logCfg.Level = level
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
