package rvo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/orca/pkg/physics"
)

func TestGroup_Lifecycle(t *testing.T) {
	w := New(WithTimeStep(0.1), WithWorkers(2))

	_, err := w.AddGroup(physics.Zero)
	require.ErrorIs(t, err, ErrNoAgentDefaults)

	w.SetAgentDefaults(testParams())

	left, err := w.GetDefaultAgent(physics.Vec(0, 0), true)
	require.NoError(t, err)
	right, err := w.GetDefaultAgent(physics.Vec(2, 0), false)
	require.NoError(t, err)
	require.NoError(t, w.SetAgentMass(right, 3))

	groupID, err := w.AddGroup(physics.Vec(10, 10))
	require.NoError(t, err)

	group, err := w.Agent(groupID)
	require.NoError(t, err)
	assert.True(t, group.IsGroup())
	assert.Equal(t, KindComposite, group.Kind())
	assert.Zero(t, group.Radius(), "empty group")

	require.NoError(t, w.AddAgentToGroup(left, groupID))
	require.NoError(t, w.AddAgentToGroup(right, groupID))

	assert.Equal(t, []int{groupID}, w.ActiveAgents(), "members leave the simulated set")
	assert.ElementsMatch(t, []int{left, right}, group.Children())
	assertVec(t, physics.Vec(1, 0), group.Position())
	assert.InDelta(t, 1.5, group.Radius(), 1e-9, "half diagonal plus largest member radius")
	assert.Equal(t, 4.0, group.Mass())

	lower, upper := group.Bounds()
	assertVec(t, physics.Vec(0, 0), lower)
	assertVec(t, physics.Vec(2, 0), upper)

	member, err := w.Agent(left)
	require.NoError(t, err)
	gid, ok := member.Group()
	assert.True(t, ok)
	assert.Equal(t, groupID, gid)

	require.NoError(t, w.SetAgentPrefVelocity(groupID, physics.Vec(1, 0)))
	_, err = w.DoStep()
	require.NoError(t, err)

	assertVec(t, physics.Vec(1.1, 0), group.Position())
	assertVec(t, physics.Vec(0.1, 0), member.Position(), "members move with the group")
	assertVec(t, physics.Vec(1, 0), member.Velocity())
	lower, upper = group.Bounds()
	assertVec(t, physics.Vec(0.1, 0), lower)
	assertVec(t, physics.Vec(2.1, 0), upper)

	require.NoError(t, w.ReturnAgentFromGroup(right, groupID))
	assert.ElementsMatch(t, []int{groupID, right}, w.ActiveAgents())
	assertVec(t, physics.Vec(0.1, 0), group.Position())
	assert.InDelta(t, 0.5, group.Radius(), 1e-9)
	assert.Equal(t, 1.0, group.Mass())

	require.NoError(t, w.RemoveGroup(groupID))
	assert.ElementsMatch(t, []int{left, right}, w.ActiveAgents())
	_, err = w.Agent(groupID)
	assert.ErrorIs(t, err, ErrAgentNotFound)
	_, ok = member.Group()
	assert.False(t, ok)
}

func TestGroup_Errors(t *testing.T) {
	w := New()
	w.SetAgentDefaults(testParams())

	agent, err := w.GetDefaultAgent(physics.Zero, true)
	require.NoError(t, err)
	other, err := w.GetDefaultAgent(physics.Vec(3, 0), true)
	require.NoError(t, err)
	g1, err := w.AddGroup(physics.Zero)
	require.NoError(t, err)
	g2, err := w.AddGroup(physics.Zero)
	require.NoError(t, err)

	require.NoError(t, w.AddAgentToGroup(agent, g1))

	assert.ErrorIs(t, w.AddAgentToGroup(agent, g2), ErrAgentInGroup)
	assert.ErrorIs(t, w.AddAgentToGroup(g2, g1), ErrNestedGroup)
	assert.ErrorIs(t, w.AddAgentToGroup(other, agent), ErrNotAGroup)
	assert.ErrorIs(t, w.AddAgentToGroup(other, 99), ErrGroupNotFound)
	assert.ErrorIs(t, w.AddAgentToGroup(99, g1), ErrAgentNotFound)
	assert.ErrorIs(t, w.ReturnAgentFromGroup(other, g1), ErrAgentNotInGroup)
	assert.ErrorIs(t, w.RemoveGroup(other), ErrNotAGroup)
}

func TestGroup_RemoveMemberAndMove(t *testing.T) {
	w := New()
	w.SetAgentDefaults(testParams())

	a, err := w.GetDefaultAgent(physics.Vec(0, 0), true)
	require.NoError(t, err)
	b, err := w.GetDefaultAgent(physics.Vec(0, 4), true)
	require.NoError(t, err)
	g, err := w.AddGroup(physics.Zero)
	require.NoError(t, err)
	require.NoError(t, w.AddAgentToGroup(a, g))
	require.NoError(t, w.AddAgentToGroup(b, g))

	require.NoError(t, w.SetAgentPosition(g, physics.Vec(5, 2)))
	member, _ := w.Agent(b)
	assertVec(t, physics.Vec(5, 4), member.Position(), "moving a group moves its members")

	require.NoError(t, w.RemoveAgent(b))
	group, _ := w.Agent(g)
	assert.Equal(t, []int{a}, group.Children())
	assertVec(t, physics.Vec(5, 0), group.Position())
	assert.Equal(t, []int{g}, w.ActiveAgents())

	require.NoError(t, w.RemoveAgent(g))
	assert.Equal(t, []int{a}, w.ActiveAgents())
}
