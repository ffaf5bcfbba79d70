package orchestrator

import "errors"

// State-machine contract violations. These are always caller bugs and are
// never retried by the orchestrator.
var (
	// ErrAgentBusy indicates the target agent is not idle.
	ErrAgentBusy = errors.New("agent is busy")

	// ErrInvalidHandoff indicates the target role does not accept handoffs
	// from the completing role.
	ErrInvalidHandoff = errors.New("invalid handoff: target role does not accept tasks from this role")

	// ErrInvalidTransition indicates a task or agent transition not present
	// in the transition table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTaskNotFound indicates no task is registered under the id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoActiveTask indicates the agent has no task in flight.
	ErrNoActiveTask = errors.New("agent has no active task")

	// ErrIndexNotConfigured indicates context retrieval was requested
	// without a wired code index.
	ErrIndexNotConfigured = errors.New("code index not configured")
)
