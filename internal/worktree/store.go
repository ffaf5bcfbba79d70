// Package worktree manages task-scoped git worktrees, one branch per task.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/gitcmd"
	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// taskDirPrefix prefixes per-task worktree directories.
const taskDirPrefix = "task-"

// taskIDPattern validates task ids for filesystem and branch-name safety.
var taskIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Worktree describes an active task workspace.
type Worktree struct {
	TaskID    string    `json:"task_id"`
	Path      string    `json:"path"`
	Branch    string    `json:"branch"`
	BaseRef   string    `json:"base_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds store configuration.
type Config struct {
	// RepoRoot is the primary repository all worktrees attach to.
	RepoRoot string

	// Root is the directory holding per-task worktree directories.
	Root string

	// BranchPrefix prefixes task branch names.
	BranchPrefix string

	// BaseRef is the ref new branches fork from. Empty means the
	// repository's current default branch.
	BaseRef string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Root == "" {
		c.Root = filepath.Join(c.RepoRoot, ".crew", "worktrees")
	}
	if c.BranchPrefix == "" {
		c.BranchPrefix = "crew/task-"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RepoRoot == "" {
		return fmt.Errorf("repo root is required")
	}
	info, err := os.Stat(c.RepoRoot)
	if err != nil {
		return fmt.Errorf("stat repo root %s: %w", c.RepoRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repo root %s is not a directory", c.RepoRoot)
	}
	return nil
}

// Store owns creation and removal of task worktrees.
//
// All mutating operations serialize on the store mutex: two concurrent
// creates for the same task id never duplicate state; the loser observes
// ErrWorktreeConflict.
type Store struct {
	config Config
	logger *logging.Logger

	mu     sync.Mutex
	active map[string]Worktree
}

// NewStore creates a worktree store rooted at the configured repository.
func NewStore(config Config, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	absRoot, err := filepath.Abs(config.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root %s: %w", config.RepoRoot, err)
	}
	config.RepoRoot = absRoot

	return &Store{
		config: config,
		logger: logger.Named("worktree"),
		active: make(map[string]Worktree),
	}, nil
}

// Path returns the deterministic worktree directory for a task id.
func (s *Store) Path(taskID string) (string, error) {
	if err := validateTaskID(taskID); err != nil {
		return "", err
	}
	return filepath.Join(s.config.Root, taskDirPrefix+taskID), nil
}

// Branch returns the deterministic branch name for a task id.
func (s *Store) Branch(taskID string) string {
	return s.config.BranchPrefix + taskID
}

// Create materializes a new worktree for taskID on its own branch, forked
// from the configured base ref (default branch tip when unset).
//
// Returns ErrWorktreeConflict when a worktree for taskID already exists,
// either in this store or on disk. Underlying git failures surface as
// *gitcmd.Error with the failing command's diagnostics.
func (s *Store) Create(ctx context.Context, taskID string) (Worktree, error) {
	path, err := s.Path(taskID)
	if err != nil {
		return Worktree{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[taskID]; ok {
		return Worktree{}, fmt.Errorf("%w: %s", ErrWorktreeConflict, taskID)
	}
	if _, err := os.Stat(path); err == nil {
		return Worktree{}, fmt.Errorf("%w: %s (directory %s exists)", ErrWorktreeConflict, taskID, path)
	} else if !os.IsNotExist(err) {
		return Worktree{}, fmt.Errorf("stat worktree path %s: %w", path, err)
	}

	baseRef := s.config.BaseRef
	if baseRef == "" {
		baseRef, err = defaultBranch(s.config.RepoRoot)
		if err != nil {
			return Worktree{}, err
		}
	}

	if err := os.MkdirAll(s.config.Root, 0o755); err != nil {
		return Worktree{}, fmt.Errorf("create worktree root %s: %w", s.config.Root, err)
	}

	branch := s.Branch(taskID)
	if _, err := gitcmd.Run(ctx, s.config.RepoRoot, "worktree", "add", "-b", branch, path, baseRef); err != nil {
		return Worktree{}, err
	}

	wt := Worktree{
		TaskID:    taskID,
		Path:      path,
		Branch:    branch,
		BaseRef:   baseRef,
		CreatedAt: time.Now().UTC(),
	}
	s.active[taskID] = wt

	s.logger.Info(ctx, "created worktree",
		zap.String("task_id", taskID),
		zap.String("path", path),
		zap.String("branch", branch),
		zap.String("base_ref", baseRef),
	)
	return wt, nil
}

// Remove deletes the task worktree directory and prunes the git
// administrative record. Removing an already-removed worktree is a no-op.
func (s *Store) Remove(ctx context.Context, taskID string) error {
	path, err := s.Path(taskID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		// Directory already gone; prune any stale administrative record.
		delete(s.active, taskID)
		_, _ = gitcmd.Run(ctx, s.config.RepoRoot, "worktree", "prune")
		return nil
	}

	if _, err := gitcmd.Run(ctx, s.config.RepoRoot, "worktree", "remove", "--force", path); err != nil {
		return err
	}
	if _, err := gitcmd.Run(ctx, s.config.RepoRoot, "worktree", "prune"); err != nil {
		return err
	}
	delete(s.active, taskID)

	s.logger.Info(ctx, "removed worktree",
		zap.String("task_id", taskID),
		zap.String("path", path),
	)
	return nil
}

// Get returns the active worktree for taskID.
func (s *Store) Get(taskID string) (Worktree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, ok := s.active[taskID]
	if !ok {
		return Worktree{}, fmt.Errorf("%w: %s", ErrWorktreeNotFound, taskID)
	}
	return wt, nil
}

// List returns all active worktrees ordered by task id.
func (s *Store) List() []Worktree {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Worktree, 0, len(s.active))
	for _, wt := range s.active {
		out = append(out, wt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// defaultBranch resolves the repository's current default branch name.
func defaultBranch(repoRoot string) (string, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return "", fmt.Errorf("open repository %s: %w", repoRoot, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD of %s: %w", repoRoot, err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	// Detached HEAD: fork from the exact commit.
	return head.Hash().String(), nil
}

func validateTaskID(taskID string) error {
	if taskID == "" || len(taskID) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
	}
	if !taskIDPattern.MatchString(taskID) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
	}
	if filepath.Clean(taskID) != taskID {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
	}
	return nil
}
