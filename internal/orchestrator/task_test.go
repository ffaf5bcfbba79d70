package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/registry"
)

func TestTaskTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{TaskPending, TaskInProgress, true},
		{TaskInProgress, TaskCompleted, true},
		{TaskInProgress, TaskBlocked, true},
		{TaskCompleted, TaskHandedOff, true},

		{TaskPending, TaskCompleted, false},
		{TaskPending, TaskBlocked, false},
		{TaskCompleted, TaskInProgress, false},
		{TaskCompleted, TaskPending, false},
		{TaskHandedOff, TaskInProgress, false},
		{TaskBlocked, TaskInProgress, false},
		{TaskBlocked, TaskCompleted, false},
		{TaskInProgress, TaskHandedOff, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			task := &Task{ID: "t", Status: tt.from}
			err := task.transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, task.Status)
				assert.False(t, task.UpdatedAt.IsZero())
			} else {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, task.Status)
			}
		})
	}
}

func TestTaskTransition_UnknownStatus(t *testing.T) {
	task := &Task{ID: "t", Status: "bogus"}
	require.ErrorIs(t, task.transition(TaskInProgress), ErrInvalidTransition)
}

func TestAgentTransitions(t *testing.T) {
	assert.True(t, validAgentTransition(registry.AgentIdle, registry.AgentWorking))
	assert.True(t, validAgentTransition(registry.AgentIdle, registry.AgentDone))
	assert.True(t, validAgentTransition(registry.AgentWorking, registry.AgentIdle))
	assert.True(t, validAgentTransition(registry.AgentWorking, registry.AgentBlocked))
	assert.True(t, validAgentTransition(registry.AgentBlocked, registry.AgentIdle))

	assert.False(t, validAgentTransition(registry.AgentIdle, registry.AgentBlocked))
	assert.False(t, validAgentTransition(registry.AgentBlocked, registry.AgentWorking))
	assert.False(t, validAgentTransition(registry.AgentDone, registry.AgentWorking))
	assert.False(t, validAgentTransition(registry.AgentDone, registry.AgentIdle))
	assert.False(t, validAgentTransition("bogus", registry.AgentIdle))
}
