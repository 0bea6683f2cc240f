package rvo

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/orca/pkg/physics"
)

func randomAgents(n int, maxNeighbors int, seed uint64) []*Agent {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	p := testParams()
	p.MaxNeighbors = maxNeighbors

	agents := make([]*Agent, n)
	for i := range agents {
		agents[i] = newAgent(i, KindSimple, physics.Vec(rng.Float64()*20, rng.Float64()*20), p)
	}
	return agents
}

func bruteForceNeighbors(agents []*Agent, self *Agent, rangeSq float64) []int {
	type candidate struct {
		id     int
		distSq float64
	}
	var found []candidate
	for _, other := range agents {
		if other == self {
			continue
		}
		if d := self.position.Sub(other.position).AbsSq(); d < rangeSq {
			found = append(found, candidate{id: other.id, distSq: d})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].distSq < found[j].distSq })

	ids := make([]int, len(found))
	for i, c := range found {
		ids[i] = c.id
	}
	return ids
}

func neighborIDs(a *Agent) []int {
	ids := make([]int, a.NumAgentNeighbors())
	for i := range ids {
		ids[i] = a.AgentNeighbor(i)
	}
	return ids
}

func TestAgentTree_MatchesBruteForce(t *testing.T) {
	const neighborDist = 5.0

	agents := randomAgents(50, 50, 7)
	var tree agentTree
	tree.build(agents)

	for _, a := range agents {
		rangeSq := neighborDist * neighborDist
		tree.computeNeighbors(a, &rangeSq)

		expected := bruteForceNeighbors(agents, a, neighborDist*neighborDist)
		assert.ElementsMatchf(t, expected, neighborIDs(a), "agent %d", a.id)

		for i := 1; i < len(a.agentNeighbors); i++ {
			assert.LessOrEqual(t, a.agentNeighbors[i-1].distSq, a.agentNeighbors[i].distSq)
		}
	}
}

func TestAgentTree_CapsAtMaxNeighbors(t *testing.T) {
	const neighborDist = 8.0

	agents := randomAgents(50, 4, 11)
	var tree agentTree
	tree.build(agents)

	for _, a := range agents {
		rangeSq := neighborDist * neighborDist
		tree.computeNeighbors(a, &rangeSq)

		expected := bruteForceNeighbors(agents, a, neighborDist*neighborDist)
		if len(expected) > 4 {
			expected = expected[:4]
		}
		assert.Equalf(t, expected, neighborIDs(a), "agent %d keeps the nearest neighbours in order", a.id)
	}
}

func TestAgentTree_Empty(t *testing.T) {
	var tree agentTree
	tree.build(nil)

	a := newAgent(0, KindSimple, physics.Zero, testParams())
	rangeSq := 100.0
	tree.computeNeighbors(a, &rangeSq)
	assert.Zero(t, a.NumAgentNeighbors())
}

func TestObstacleTree_SplitsCrossingEdges(t *testing.T) {
	w := New()
	_, err := w.AddObstacle([]physics.Vector2{physics.Vec(0, 0), physics.Vec(4, 0)})
	require.NoError(t, err)
	_, err = w.AddObstacle([]physics.Vector2{physics.Vec(2, -1), physics.Vec(2, 1)})
	require.NoError(t, err)
	require.Equal(t, 4, w.NumObstacleVertices())

	require.NoError(t, w.ProcessObstacles())
	require.Equal(t, 6, w.NumObstacleVertices())

	for id := 4; id < 6; id++ {
		o, err := w.Obstacle(id)
		require.NoError(t, err)
		assertVec(t, physics.Vec(2, 0), o.Point)
		assert.True(t, o.Convex)
	}

	for id := 0; id < w.NumObstacleVertices(); id++ {
		o, err := w.Obstacle(id)
		require.NoError(t, err)
		next, err := w.Obstacle(o.Next)
		require.NoError(t, err)
		prev, err := w.Obstacle(o.Previous)
		require.NoError(t, err)
		assert.Equalf(t, id, next.Previous, "cycle broken after %d", id)
		assert.Equalf(t, id, prev.Next, "cycle broken before %d", id)
	}

	_, err = w.AddObstacle([]physics.Vector2{physics.Vec(9, 9), physics.Vec(10, 9)})
	assert.ErrorIs(t, err, ErrObstaclesProcessed)
	assert.ErrorIs(t, w.ProcessObstacles(), ErrObstaclesProcessed)
}

func TestQueryVisibility(t *testing.T) {
	w := New()
	_, err := w.AddObstacle([]physics.Vector2{physics.Vec(0, -5), physics.Vec(0, 5)})
	require.NoError(t, err)
	require.NoError(t, w.ProcessObstacles())

	tests := []struct {
		name     string
		p1, p2   physics.Vector2
		radius   float64
		expected bool
	}{
		{name: "Through the wall", p1: physics.Vec(-2, 0), p2: physics.Vec(2, 0), radius: 0.1, expected: false},
		{name: "Same side", p1: physics.Vec(-2, 0), p2: physics.Vec(-2, 3), radius: 0.1, expected: true},
		{name: "Past the end", p1: physics.Vec(-2, 6), p2: physics.Vec(2, 6), radius: 0.5, expected: true},
		{name: "Past the end without clearance", p1: physics.Vec(-2, 6), p2: physics.Vec(2, 6), radius: 2, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, w.QueryVisibility(tt.p1, tt.p2, tt.radius))
		})
	}

	assert.True(t, New().QueryVisibility(physics.Vec(-2, 0), physics.Vec(2, 0), 1), "no obstacles")
}
