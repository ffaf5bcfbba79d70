package orchestrator

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/crewd/internal/registry"
)

// TaskStatus labels the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskHandedOff  TaskStatus = "handed_off"
	TaskBlocked    TaskStatus = "blocked"
)

// Task is one unit of agent work.
type Task struct {
	ID              string     `json:"id"`
	Description     string     `json:"description"`
	AssignedAgentID string     `json:"assigned_agent_id"`
	Status          TaskStatus `json:"status"`
	ResultSummary   string     `json:"result_summary,omitempty"`

	// InputContext carries the predecessor's result summary across a handoff.
	InputContext string `json:"input_context,omitempty"`

	// PredecessorID links a handed-off successor to its origin task.
	PredecessorID string `json:"predecessor_id,omitempty"`

	// WorktreePath is the task's isolated workspace, when one was materialized.
	WorktreePath string `json:"worktree_path,omitempty"`

	// BlockReason explains a blocked task for the human operator.
	BlockReason string `json:"block_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// taskTransitions is the full task lifecycle table. Any transition not
// listed here is rejected with ErrInvalidTransition.
var taskTransitions = map[TaskStatus]map[TaskStatus]struct{}{
	TaskPending: {
		TaskInProgress: {},
	},
	TaskInProgress: {
		TaskCompleted: {},
		TaskBlocked:   {},
	},
	TaskCompleted: {
		TaskHandedOff: {},
	},
	TaskHandedOff: {},
	TaskBlocked:   {},
}

// agentTransitions is the agent lifecycle table.
var agentTransitions = map[registry.AgentState]map[registry.AgentState]struct{}{
	registry.AgentIdle: {
		registry.AgentWorking: {},
		registry.AgentDone:    {},
	},
	registry.AgentWorking: {
		registry.AgentIdle:    {},
		registry.AgentBlocked: {},
	},
	registry.AgentBlocked: {
		registry.AgentIdle: {},
	},
	registry.AgentDone: {},
}

// transitionTask validates and applies a task state change.
func (t *Task) transition(to TaskStatus) error {
	allowed, ok := taskTransitions[t.Status]
	if !ok {
		return fmt.Errorf("%w: task %s has unknown status %q", ErrInvalidTransition, t.ID, t.Status)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: task %s cannot move %s -> %s", ErrInvalidTransition, t.ID, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// validAgentTransition reports whether the agent state change is allowed.
func validAgentTransition(from, to registry.AgentState) bool {
	allowed, ok := agentTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}
