// Package orchestrator drives the task-handoff state machine across agents.
//
// The orchestrator is the only component with write-authority over agent
// state. It materializes workspaces through the worktree store, lets agents
// retrieve context through the code index (read-only), and durably records
// agent output through the provenance committer before handoff.
//
// Agent "work" -- the actual reasoning step -- happens outside, between
// AssignTask and CompleteTask; the orchestrator only validates and mutates
// state at call boundaries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/index"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/provenance"
	"github.com/fyrsmithlabs/crewd/internal/registry"
	"github.com/fyrsmithlabs/crewd/internal/worktree"
)

// Services are the collaborators the orchestrator drives. Each is optional:
// a nil worktree store skips workspace materialization, a nil committer
// disables RecordArtifact, a nil index disables GatherContext.
type Services struct {
	Worktrees *worktree.Store
	Committer *provenance.Committer
	Index     *index.Index
}

// Orchestrator assigns tasks to agents, records completion artifacts and
// triggers handoff to the next role.
//
// A single mutex serializes all state mutation; agent count is small
// (bounded by role count), so finer-grained locking buys nothing.
type Orchestrator struct {
	registry  *registry.Registry
	services  Services
	logger    *logging.Logger
	sessionID string

	mu      sync.Mutex
	tasks   map[string]*Task
	archive []*Task
}

// New creates an orchestrator for one session over the given registry.
func New(reg *registry.Registry, services Services, logger *logging.Logger) (*Orchestrator, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Orchestrator{
		registry:  reg,
		services:  services,
		logger:    logger.Named("orchestrator"),
		sessionID: uuid.NewString(),
		tasks:     make(map[string]*Task),
	}, nil
}

// SessionID returns the session identity stamped into provenance records.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// AssignTask creates a task and assigns it to the agent.
//
// Fails with ErrAgentBusy when the agent is not idle; the existing task is
// never mutated. When a worktree store is wired, the task's workspace is
// materialized before any state changes, so a git failure leaves the agent
// untouched.
func (o *Orchestrator) AssignTask(ctx context.Context, agentID, description string) (*Task, error) {
	ctx = logging.WithSessionID(ctx, o.sessionID)
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.assignLocked(ctx, agentID, description, "", "")
}

// assignLocked creates and starts a task. Caller holds o.mu.
func (o *Orchestrator) assignLocked(ctx context.Context, agentID, description, inputContext, predecessorID string) (*Task, error) {
	agent, err := o.registry.Get(agentID)
	if err != nil {
		return nil, err
	}
	if agent.State != registry.AgentIdle {
		return nil, fmt.Errorf("%w: agent %s is %s", ErrAgentBusy, agentID, agent.State)
	}

	now := time.Now().UTC()
	task := &Task{
		ID:              uuid.NewString(),
		Description:     description,
		AssignedAgentID: agentID,
		Status:          TaskPending,
		InputContext:    inputContext,
		PredecessorID:   predecessorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Side effects before state mutation: a failed worktree create must
	// leave agent and task state unchanged.
	if o.services.Worktrees != nil {
		wt, err := o.services.Worktrees.Create(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("materializing workspace for task %s: %w", task.ID, err)
		}
		task.WorktreePath = wt.Path
	}

	if err := task.transition(TaskInProgress); err != nil {
		return nil, err
	}
	if !validAgentTransition(agent.State, registry.AgentWorking) {
		return nil, fmt.Errorf("%w: agent %s cannot move %s -> %s", ErrInvalidTransition, agentID, agent.State, registry.AgentWorking)
	}
	if err := o.registry.Set(agentID, registry.AgentWorking, task.ID); err != nil {
		return nil, err
	}
	o.tasks[task.ID] = task

	ctx = logging.WithTaskID(logging.WithAgentID(ctx, agentID), task.ID)
	o.logger.Info(ctx, "assigned task",
		zap.String("predecessor_id", predecessorID),
	)
	return cloneTask(task), nil
}

// CompleteTask records the calling agent's result and returns it to idle.
//
// With a nextAgentID, a successor task is created atomically: it carries
// resultSummary forward as input context and the original task is marked
// handed_off. Fails with ErrInvalidHandoff when the next agent's role does
// not accept handoffs from the completing role -- both agents' states are
// left unchanged on any failure.
func (o *Orchestrator) CompleteTask(ctx context.Context, agentID, resultSummary, nextAgentID string) (*Task, error) {
	ctx = logging.WithSessionID(logging.WithAgentID(ctx, agentID), o.sessionID)
	o.mu.Lock()
	defer o.mu.Unlock()

	agent, err := o.registry.Get(agentID)
	if err != nil {
		return nil, err
	}
	if agent.State != registry.AgentWorking {
		return nil, fmt.Errorf("%w: agent %s is %s, not working", ErrInvalidTransition, agentID, agent.State)
	}
	task, ok := o.tasks[agent.CurrentTask]
	if !ok {
		return nil, fmt.Errorf("%w: agent %s", ErrNoActiveTask, agentID)
	}

	// Validate the whole handoff, and materialize the successor (the only
	// fallible side effect), before mutating anything: a failed handoff
	// must leave the original task and both agents exactly as they were.
	var successor *Task
	if nextAgentID != "" {
		next, err := o.registry.Get(nextAgentID)
		if err != nil {
			return nil, err
		}
		if next.State != registry.AgentIdle {
			return nil, fmt.Errorf("%w: next agent %s is %s", ErrAgentBusy, nextAgentID, next.State)
		}
		if !o.registry.AcceptsHandoff(agent.Type, next.Type) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidHandoff, agent.Type, next.Type)
		}
		successor, err = o.assignLocked(ctx, nextAgentID, task.Description, resultSummary, task.ID)
		if err != nil {
			return nil, fmt.Errorf("handoff to %s: %w", nextAgentID, err)
		}
	}

	if err := task.transition(TaskCompleted); err != nil {
		return nil, err
	}
	task.ResultSummary = resultSummary
	if err := o.registry.Set(agentID, registry.AgentIdle, ""); err != nil {
		return nil, err
	}

	ctx = logging.WithTaskID(ctx, task.ID)
	o.logger.Info(ctx, "completed task")

	if successor == nil {
		// Terminal task: the chain ends here.
		o.archiveLocked(task)
		return cloneTask(task), nil
	}

	if err := task.transition(TaskHandedOff); err != nil {
		return nil, err
	}
	o.archiveLocked(task)

	o.logger.Info(ctx, "handed off task",
		zap.String("successor_id", successor.ID),
		zap.String("next_agent_id", nextAgentID),
	)
	return successor, nil
}

// BlockTask transitions a working agent to blocked, signalling it cannot
// proceed (for example after an underlying git failure). The orchestrator
// surfaces the condition and never auto-retries; a human or higher-level
// controller must reset or abort, and worktree cleanup after an abort is
// the caller's responsibility.
func (o *Orchestrator) BlockTask(ctx context.Context, agentID, reason string) (*Task, error) {
	ctx = logging.WithSessionID(logging.WithAgentID(ctx, agentID), o.sessionID)
	o.mu.Lock()
	defer o.mu.Unlock()

	agent, err := o.registry.Get(agentID)
	if err != nil {
		return nil, err
	}
	if !validAgentTransition(agent.State, registry.AgentBlocked) {
		return nil, fmt.Errorf("%w: agent %s cannot move %s -> %s", ErrInvalidTransition, agentID, agent.State, registry.AgentBlocked)
	}
	task, ok := o.tasks[agent.CurrentTask]
	if !ok {
		return nil, fmt.Errorf("%w: agent %s", ErrNoActiveTask, agentID)
	}

	if err := task.transition(TaskBlocked); err != nil {
		return nil, err
	}
	task.BlockReason = reason
	if err := o.registry.Set(agentID, registry.AgentBlocked, task.ID); err != nil {
		return nil, err
	}

	ctx = logging.WithTaskID(ctx, task.ID)
	o.logger.Warn(ctx, "blocked task", zap.String("reason", reason))
	return cloneTask(task), nil
}

// ResetAgent aborts a blocked agent's task and returns the agent to idle.
// The blocked task is archived as-is; its worktree is left for the caller
// to remove.
func (o *Orchestrator) ResetAgent(ctx context.Context, agentID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	agent, err := o.registry.Get(agentID)
	if err != nil {
		return err
	}
	if !validAgentTransition(agent.State, registry.AgentIdle) {
		return fmt.Errorf("%w: agent %s cannot move %s -> %s", ErrInvalidTransition, agentID, agent.State, registry.AgentIdle)
	}
	if task, ok := o.tasks[agent.CurrentTask]; ok {
		o.archiveLocked(task)
	}
	if err := o.registry.Set(agentID, registry.AgentIdle, ""); err != nil {
		return err
	}

	o.logger.Info(ctx, "reset agent", zap.String("agent_id", agentID))
	return nil
}

// RecordArtifact commits the working agent's worktree through the
// provenance committer, stamping agent and session identity into the
// metadata. Returns the new commit hash.
func (o *Orchestrator) RecordArtifact(ctx context.Context, agentID, message string, meta provenance.Metadata) (string, error) {
	if o.services.Committer == nil {
		return "", fmt.Errorf("provenance committer not configured")
	}

	o.mu.Lock()
	agent, err := o.registry.Get(agentID)
	if err != nil {
		o.mu.Unlock()
		return "", err
	}
	if agent.State != registry.AgentWorking {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: agent %s is %s, not working", ErrInvalidTransition, agentID, agent.State)
	}
	task, ok := o.tasks[agent.CurrentTask]
	if !ok || task.WorktreePath == "" {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: agent %s has no workspace to commit", ErrNoActiveTask, agentID)
	}
	worktreePath := task.WorktreePath
	o.mu.Unlock()

	// Commit outside the lock: it shells out and may be slow.
	meta.AgentID = agentID
	if meta.SessionID == "" {
		meta.SessionID = o.sessionID
	}
	return o.services.Committer.Commit(ctx, worktreePath, message, meta)
}

// GatherContext retrieves code context for a query before task execution:
// semantic search when the index has an embedding provider, keyword search
// otherwise. The two modes are independent; results are never fused.
func (o *Orchestrator) GatherContext(ctx context.Context, query string, limit int) ([]index.Entry, error) {
	if o.services.Index == nil {
		return nil, ErrIndexNotConfigured
	}

	matches, err := o.services.Index.SearchByEmbedding(ctx, query, limit)
	switch {
	case err == nil:
		entries := make([]index.Entry, len(matches))
		for n, m := range matches {
			entries[n] = m.Entry
		}
		return entries, nil
	case errors.Is(err, index.ErrEmbeddingUnavailable):
		entries := o.services.Index.SearchByKeyword(query)
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		return entries, nil
	default:
		return nil, err
	}
}

// Task returns a copy of a live or archived task.
func (o *Orchestrator) Task(taskID string) (*Task, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if task, ok := o.tasks[taskID]; ok {
		return cloneTask(task), nil
	}
	for _, task := range o.archive {
		if task.ID == taskID {
			return cloneTask(task), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// Archive returns copies of archived (terminal) tasks, oldest first.
func (o *Orchestrator) Archive() []*Task {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*Task, len(o.archive))
	for n, task := range o.archive {
		out[n] = cloneTask(task)
	}
	return out
}

// SystemState is the sole read surface exposed to dashboards.
func (o *Orchestrator) SystemState() registry.SystemState {
	return o.registry.Snapshot()
}

// archiveLocked moves a task from the live set to the archive.
// Caller holds o.mu.
func (o *Orchestrator) archiveLocked(task *Task) {
	delete(o.tasks, task.ID)
	o.archive = append(o.archive, task)
}

func cloneTask(task *Task) *Task {
	copied := *task
	return &copied
}
