// Package registry holds the fixed set of agent role definitions and their
// live runtime state.
//
// The registry is owned by one orchestration session and handed to a single
// TaskOrchestrator, which has sole write-authority over agent state. There
// are no ambient globals: construct one Registry per session.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownAgent indicates no agent is registered under the id.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrDuplicateRole indicates a role name was declared twice.
	ErrDuplicateRole = errors.New("duplicate role name")

	// ErrNoRoles indicates the registry was constructed without roles.
	ErrNoRoles = errors.New("at least one role is required")
)

// RoleName identifies an agent role.
type RoleName string

// Built-in roles.
const (
	RolePlanner  RoleName = "planner"
	RoleCoder    RoleName = "coder"
	RoleReviewer RoleName = "reviewer"
)

// Role declares a role and the capability contract for handoffs:
// AcceptsFrom lists the roles whose completed tasks this role may accept.
type Role struct {
	Name        RoleName
	AcceptsFrom []RoleName
}

// DefaultRoles returns the standard planner -> coder -> reviewer chain;
// the reviewer may hand work back to the coder.
func DefaultRoles() []Role {
	return []Role{
		{Name: RolePlanner, AcceptsFrom: nil},
		{Name: RoleCoder, AcceptsFrom: []RoleName{RolePlanner, RoleReviewer}},
		{Name: RoleReviewer, AcceptsFrom: []RoleName{RoleCoder}},
	}
}

// AgentState labels the runtime state of an agent.
type AgentState string

const (
	AgentIdle    AgentState = "idle"
	AgentWorking AgentState = "working"
	AgentBlocked AgentState = "blocked"
	AgentDone    AgentState = "done"
)

// Agent is the live runtime record for one agent.
type Agent struct {
	ID          string     `json:"id"`
	Type        RoleName   `json:"type"`
	State       AgentState `json:"state"`
	CurrentTask string     `json:"current_task,omitempty"`
}

// SystemState is the read-only snapshot exposed to dashboards.
// This contract must remain stable.
type SystemState struct {
	Agents []Agent `json:"agents"`
}

// Registry stores agents and their role definitions.
type Registry struct {
	mu     sync.RWMutex
	roles  map[RoleName]Role
	agents map[string]*Agent
	order  []string
}

// New creates a registry with one agent per role, the agent id being the
// role name. The role set is fixed for the life of the registry.
func New(roles []Role) (*Registry, error) {
	if len(roles) == 0 {
		return nil, ErrNoRoles
	}

	r := &Registry{
		roles:  make(map[RoleName]Role, len(roles)),
		agents: make(map[string]*Agent, len(roles)),
	}
	for _, role := range roles {
		if role.Name == "" {
			return nil, fmt.Errorf("role name is required")
		}
		if _, dup := r.roles[role.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRole, role.Name)
		}
		r.roles[role.Name] = role

		id := string(role.Name)
		r.agents[id] = &Agent{
			ID:    id,
			Type:  role.Name,
			State: AgentIdle,
		}
		r.order = append(r.order, id)
	}
	return r, nil
}

// Get returns a copy of the agent record.
func (r *Registry) Get(agentID string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return Agent{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return *agent, nil
}

// Set replaces the mutable fields of an agent record. Only the
// orchestrator calls this; transition validation happens there.
func (r *Registry) Set(agentID string, state AgentState, currentTask string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	agent.State = state
	agent.CurrentTask = currentTask
	return nil
}

// AcceptsHandoff reports whether an agent with role `to` may accept a task
// handed off by an agent with role `from`.
func (r *Registry) AcceptsHandoff(from, to RoleName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[to]
	if !ok {
		return false
	}
	for _, accepted := range role.AcceptsFrom {
		if accepted == from {
			return true
		}
	}
	return false
}

// Snapshot returns a read-only copy of all agents in registration order.
func (r *Registry) Snapshot() SystemState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		agents = append(agents, *r.agents[id])
	}
	return SystemState{Agents: agents}
}
