package provenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/gitcmd"
	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// ErrNothingToCommit indicates the worktree had no pending changes.
// Non-fatal: callers may skip or surface it upstream.
var ErrNothingToCommit = errors.New("nothing to commit: worktree is clean")

// EnhancedCommit pairs a commit with its parsed provenance metadata.
// Meta is nil for commits written without a provenance block.
type EnhancedCommit struct {
	Hash    string
	Message string
	Meta    *Metadata
}

// Committer wraps commit creation with structured provenance metadata.
type Committer struct {
	logger *logging.Logger
}

// NewCommitter creates a provenance committer.
func NewCommitter(logger *logging.Logger) *Committer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Committer{logger: logger.Named("provenance")}
}

// Commit stages all pending changes in the worktree and creates a commit
// whose message carries the provenance block. Returns the new commit hash.
//
// Returns ErrNothingToCommit when the worktree is clean. Underlying git
// failures surface as *gitcmd.Error. Commit creation is all-or-nothing:
// a failed commit leaves no provenance record behind.
func (c *Committer) Commit(ctx context.Context, worktreePath, message string, meta Metadata) (string, error) {
	if worktreePath == "" {
		return "", fmt.Errorf("worktree path is required")
	}
	if message == "" {
		return "", fmt.Errorf("commit message is required")
	}

	status, err := gitcmd.Run(ctx, worktreePath, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", fmt.Errorf("%w (%s)", ErrNothingToCommit, worktreePath)
	}

	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	fullMessage, err := appendBlock(message, &meta)
	if err != nil {
		return "", err
	}

	if _, err := gitcmd.Run(ctx, worktreePath, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := gitcmd.RunWithStdin(ctx, worktreePath, fullMessage, "commit", "-F", "-"); err != nil {
		return "", err
	}

	hash, err := gitcmd.Run(ctx, worktreePath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	c.logger.Info(ctx, "committed with provenance",
		zap.String("commit", hash),
		zap.String("agent_id", meta.AgentID),
		zap.String("session_id", meta.SessionID),
	)
	return hash, nil
}

// History walks the worktree branch's commit ancestry newest-first and
// parses the provenance block from each commit where present.
//
// The result is a finite slice, one full walk per call; commits without a
// block yield Meta == nil. Message carries the human part of the commit
// message with the provenance block stripped.
func (c *Committer) History(ctx context.Context, worktreePath string) ([]EnhancedCommit, error) {
	repo, err := git.PlainOpenWithOptions(worktreePath, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", worktreePath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD at %s: %w", worktreePath, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("walk history at %s: %w", worktreePath, err)
	}
	defer iter.Close()

	var commits []EnhancedCommit
	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		message, meta, err := parseMessage(commit.Message)
		if err != nil {
			return fmt.Errorf("parse provenance of %s: %w", commit.Hash, err)
		}
		commits = append(commits, EnhancedCommit{
			Hash:    commit.Hash.String(),
			Message: message,
			Meta:    meta,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}
