package provenance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/testrepos"
)

func TestCommitter_Commit(t *testing.T) {
	repo := testrepos.New(t)
	committer := NewCommitter(nil)
	ctx := context.Background()

	repo.WriteFile(t, "feature.ts", "export const hello = () => 'world'\n")

	hash, err := committer.Commit(ctx, repo.Root, "Add hello feature", Metadata{
		Prompt:          "implement the greeting helper",
		ExpectedOutcome: "hello returns world",
		AgentID:         "coder-alpha",
		SessionID:       "session-1",
	})
	require.NoError(t, err)
	require.Len(t, hash, 40)

	// Exactly one commit on top of the initial one.
	count := repo.RunGit(t, "rev-list", "--count", "HEAD")
	assert.Equal(t, "2", count)

	history, err := committer.History(ctx, repo.Root)
	require.NoError(t, err)
	require.Len(t, history, 2)

	newest := history[0]
	assert.Equal(t, hash, newest.Hash)
	assert.Equal(t, "Add hello feature", newest.Message)
	require.NotNil(t, newest.Meta)
	assert.Equal(t, "coder-alpha", newest.Meta.AgentID)
	assert.Equal(t, "session-1", newest.Meta.SessionID)
	assert.Equal(t, "implement the greeting helper", newest.Meta.Prompt)
	assert.False(t, newest.Meta.Timestamp.IsZero())

	// The initial commit has no provenance block.
	assert.Nil(t, history[1].Meta)
	assert.Equal(t, "Initial commit", history[1].Message)
}

func TestCommitter_CommitRoundTripsMetadata(t *testing.T) {
	repo := testrepos.New(t)
	committer := NewCommitter(nil)
	ctx := context.Background()

	want := Metadata{
		Prompt:          "refactor the parser",
		ExpectedOutcome: "all parser tests pass",
		ContextSummary:  "parser.go, lexer.go",
		AgentID:         "reviewer",
		SessionID:       "session-9",
		Timestamp:       time.Date(2026, 5, 2, 16, 0, 0, 0, time.UTC),
	}

	repo.WriteFile(t, "parser.go", "package parser\n")
	hash, err := committer.Commit(ctx, repo.Root, "Refactor parser", want)
	require.NoError(t, err)

	history, err := committer.History(ctx, repo.Root)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	require.Equal(t, hash, history[0].Hash)

	got := history[0].Meta
	require.NotNil(t, got)
	assert.Equal(t, want.Prompt, got.Prompt)
	assert.Equal(t, want.ExpectedOutcome, got.ExpectedOutcome)
	assert.Equal(t, want.ContextSummary, got.ContextSummary)
	assert.Equal(t, want.AgentID, got.AgentID)
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
}

func TestCommitter_NothingToCommit(t *testing.T) {
	repo := testrepos.New(t)
	committer := NewCommitter(nil)

	_, err := committer.Commit(context.Background(), repo.Root, "empty", Metadata{AgentID: "coder"})
	require.ErrorIs(t, err, ErrNothingToCommit)

	// No commit was created.
	count := repo.RunGit(t, "rev-list", "--count", "HEAD")
	assert.Equal(t, "1", count)
}

func TestCommitter_HistoryMixedCommits(t *testing.T) {
	repo := testrepos.New(t)
	committer := NewCommitter(nil)
	ctx := context.Background()

	// Two plain commits interleaved with two provenance commits.
	repo.WriteFile(t, "a.txt", "a\n")
	repo.Commit(t, "plain a")

	repo.WriteFile(t, "b.txt", "b\n")
	_, err := committer.Commit(ctx, repo.Root, "tracked b", Metadata{AgentID: "coder"})
	require.NoError(t, err)

	repo.WriteFile(t, "c.txt", "c\n")
	repo.Commit(t, "plain c")

	repo.WriteFile(t, "d.txt", "d\n")
	_, err = committer.Commit(ctx, repo.Root, "tracked d", Metadata{AgentID: "reviewer"})
	require.NoError(t, err)

	history, err := committer.History(ctx, repo.Root)
	require.NoError(t, err)
	require.Len(t, history, 5) // initial + 4

	var withMeta int
	for _, commit := range history {
		if commit.Meta != nil {
			withMeta++
		}
	}
	assert.Equal(t, 2, withMeta)

	// Newest first.
	assert.Equal(t, "tracked d", history[0].Message)
	assert.Equal(t, "reviewer", history[0].Meta.AgentID)
	assert.Equal(t, "plain c", history[1].Message)
	assert.Nil(t, history[1].Meta)
	assert.Equal(t, "tracked b", history[2].Message)
	assert.Equal(t, "coder", history[2].Meta.AgentID)
}

func TestCommitter_HistoryInLinkedWorktree(t *testing.T) {
	repo := testrepos.New(t)
	committer := NewCommitter(nil)
	ctx := context.Background()

	worktree := t.TempDir() + "/wt"
	repo.RunGit(t, "worktree", "add", "-b", "crew/task-wt", worktree, "main")

	repo.WriteFileIn(t, worktree, "feature.ts", "export const hello = () => 'world'\n")
	hash, err := committer.Commit(ctx, worktree, "Add feature", Metadata{AgentID: "coder-alpha"})
	require.NoError(t, err)

	history, err := committer.History(ctx, worktree)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, hash, history[0].Hash)
	assert.Equal(t, "coder-alpha", history[0].Meta.AgentID)

	// The main checkout never saw the change.
	status := repo.RunGit(t, "status", "--porcelain")
	assert.Empty(t, status)
	assert.False(t, strings.Contains(repo.RunGit(t, "log", "--oneline", "main"), "Add feature"))
}

func TestCommitter_Commit_Validation(t *testing.T) {
	committer := NewCommitter(nil)
	ctx := context.Background()

	_, err := committer.Commit(ctx, "", "msg", Metadata{})
	require.Error(t, err)

	_, err = committer.Commit(ctx, t.TempDir(), "", Metadata{})
	require.Error(t, err)
}
