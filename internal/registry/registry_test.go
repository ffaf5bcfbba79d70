package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r, err := New(DefaultRoles())
	require.NoError(t, err)

	// One agent per role, idle, id == role name.
	for _, role := range []RoleName{RolePlanner, RoleCoder, RoleReviewer} {
		agent, err := r.Get(string(role))
		require.NoError(t, err)
		assert.Equal(t, string(role), agent.ID)
		assert.Equal(t, role, agent.Type)
		assert.Equal(t, AgentIdle, agent.State)
		assert.Empty(t, agent.CurrentTask)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrNoRoles)

	_, err = New([]Role{{Name: "coder"}, {Name: "coder"}})
	require.ErrorIs(t, err, ErrDuplicateRole)

	_, err = New([]Role{{Name: ""}})
	require.Error(t, err)
}

func TestGet_UnknownAgent(t *testing.T) {
	r, err := New(DefaultRoles())
	require.NoError(t, err)

	_, err = r.Get("ghost")
	require.ErrorIs(t, err, ErrUnknownAgent)
}

func TestGet_ReturnsCopy(t *testing.T) {
	r, err := New(DefaultRoles())
	require.NoError(t, err)

	agent, err := r.Get("coder")
	require.NoError(t, err)
	agent.State = AgentWorking

	fresh, err := r.Get("coder")
	require.NoError(t, err)
	assert.Equal(t, AgentIdle, fresh.State)
}

func TestSet(t *testing.T) {
	r, err := New(DefaultRoles())
	require.NoError(t, err)

	require.NoError(t, r.Set("coder", AgentWorking, "task-1"))
	agent, err := r.Get("coder")
	require.NoError(t, err)
	assert.Equal(t, AgentWorking, agent.State)
	assert.Equal(t, "task-1", agent.CurrentTask)

	require.ErrorIs(t, r.Set("ghost", AgentWorking, "task-1"), ErrUnknownAgent)
}

func TestAcceptsHandoff(t *testing.T) {
	r, err := New(DefaultRoles())
	require.NoError(t, err)

	assert.True(t, r.AcceptsHandoff(RolePlanner, RoleCoder))
	assert.True(t, r.AcceptsHandoff(RoleCoder, RoleReviewer))
	assert.True(t, r.AcceptsHandoff(RoleReviewer, RoleCoder))

	// The planner accepts from nobody; chain skips are rejected.
	assert.False(t, r.AcceptsHandoff(RoleCoder, RolePlanner))
	assert.False(t, r.AcceptsHandoff(RolePlanner, RoleReviewer))
	assert.False(t, r.AcceptsHandoff(RolePlanner, "ghost"))
}

func TestSnapshot_RegistrationOrder(t *testing.T) {
	roles := []Role{
		{Name: "reviewer", AcceptsFrom: []RoleName{"coder"}},
		{Name: "planner"},
		{Name: "coder", AcceptsFrom: []RoleName{"planner"}},
	}
	r, err := New(roles)
	require.NoError(t, err)

	state := r.Snapshot()
	require.Len(t, state.Agents, 3)
	assert.Equal(t, "reviewer", state.Agents[0].ID)
	assert.Equal(t, "planner", state.Agents[1].ID)
	assert.Equal(t, "coder", state.Agents[2].ID)

	// Snapshot is detached from live state.
	state.Agents[0].State = AgentDone
	fresh, err := r.Get("reviewer")
	require.NoError(t, err)
	assert.Equal(t, AgentIdle, fresh.State)
}
