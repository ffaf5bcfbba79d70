package worktree

import "errors"

var (
	// ErrWorktreeConflict indicates a worktree for the task already exists.
	// Callers should pick a new task id or reuse the existing path.
	ErrWorktreeConflict = errors.New("worktree already exists for task")

	// ErrInvalidTaskID indicates the task id is not filesystem-safe.
	ErrInvalidTaskID = errors.New("invalid task id: must be alphanumeric with hyphens/underscores/dots")

	// ErrWorktreeNotFound indicates no worktree is registered for the task.
	ErrWorktreeNotFound = errors.New("worktree not found for task")
)
