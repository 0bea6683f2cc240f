package rvo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/orca/pkg/physics"
)

func testParams() AgentParams {
	return AgentParams{
		NeighborDist:    15,
		MaxNeighbors:    10,
		TimeHorizon:     2,
		TimeHorizonObst: 2,
		Radius:          0.5,
		MaxSpeed:        2,
		Mass:            1,
	}
}

func TestAgentLine_OverlapUsesTimeStep(t *testing.T) {
	const timeStep = 0.25

	tests := []struct {
		name      string
		distance  float64
		pointSize float64
	}{
		// w = -p/tau, u = (r/tau - |w|) along w.
		{name: "Apart uses time horizon", distance: 1.5, pointSize: 0.125},
		// w = -p/dt, u = (r/dt - |w|) along w.
		{name: "Overlapping uses time step", distance: 0.5, pointSize: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAgent(0, KindSimple, physics.Zero, testParams())
			b := newAgent(1, KindSimple, physics.Vec(tt.distance, 0), testParams())

			a.addAgentLine(b, timeStep)
			require.Len(t, a.orcaLines, 1)

			line := a.orcaLines[0]
			assert.InDelta(t, tt.pointSize, line.Point.Abs(), 1e-9)
			assert.InDelta(t, 1, line.Direction.Abs(), 1e-9)
		})
	}
}

func TestAgentLine_MassSplit(t *testing.T) {
	light := testParams()
	heavy := testParams()
	heavy.Mass = 3

	a := newAgent(0, KindSimple, physics.Zero, light)
	b := newAgent(1, KindSimple, physics.Vec(1.5, 0), heavy)

	a.addAgentLine(b, 0.25)
	b.addAgentLine(a, 0.25)

	// The light agent takes three quarters of the correction.
	assert.InDelta(t, 0.1875, a.orcaLines[0].Point.Abs(), 1e-9)
	assert.InDelta(t, 0.0625, b.orcaLines[0].Point.Abs(), 1e-9)
}

func TestOptimalVelocity(t *testing.T) {
	v := physics.Vec(2, 0)

	assertVec(t, v, optimalVelocity(v, physics.Zero, 0.5), "equal masses keep the current velocity")
	assertVec(t, physics.Vec(1, 0), optimalVelocity(v, physics.Zero, 0.75))
	assertVec(t, physics.Vec(1, 0), optimalVelocity(v, physics.Zero, 0.25))
	assertVec(t, physics.Vec(0, 1), optimalVelocity(physics.Zero, physics.Vec(0, 2), 0.25))
}

func TestComputeNewVelocity_SatisfiesOwnLines(t *testing.T) {
	tests := []struct {
		name  string
		b     physics.Vector2
		prefA physics.Vector2
		prefB physics.Vector2
	}{
		{name: "Stationary side by side", b: physics.Vec(1.5, 0)},
		{name: "Stationary diagonal", b: physics.Vec(1, 1)},
		{name: "Stationary far apart", b: physics.Vec(4, -3)},
		{name: "Head on", b: physics.Vec(4, 0), prefA: physics.Vec(1, 0), prefB: physics.Vec(-1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(WithTimeStep(0.25), WithWorkers(1))
			a, err := w.AddAgent(physics.Zero, testParams())
			require.NoError(t, err)
			b, err := w.AddAgent(tt.b, testParams())
			require.NoError(t, err)
			require.NoError(t, w.SetAgentPrefVelocity(a, tt.prefA))
			require.NoError(t, w.SetAgentPrefVelocity(b, tt.prefB))

			_, err = w.DoStep()
			require.NoError(t, err)

			for _, id := range []int{a, b} {
				agent, err := w.Agent(id)
				require.NoError(t, err)
				require.Equal(t, 1, agent.NumAgentNeighbors())
				for i, line := range agent.OrcaLines() {
					assert.LessOrEqualf(t, line.Violation(agent.Velocity()), 1e-9, "agent %d violates line %d", id, i)
				}
			}
		})
	}
}

func TestObstacleLines_KeepAgentOutside(t *testing.T) {
	w := New(WithTimeStep(0.1), WithWorkers(1))
	_, err := w.AddObstacle([]physics.Vector2{
		physics.Vec(0, 0), physics.Vec(1, 0), physics.Vec(1, 1), physics.Vec(0, 1),
	})
	require.NoError(t, err)
	require.NoError(t, w.ProcessObstacles())

	p := testParams()
	p.Radius = 0.2
	p.MaxSpeed = 1
	id, err := w.AddAgent(physics.Vec(0.5, -1), p)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, w.SetAgentPrefVelocity(id, physics.Vec(0, 1)))
		_, err = w.DoStep()
		require.NoError(t, err)
	}

	agent, err := w.Agent(id)
	require.NoError(t, err)
	assert.Equal(t, 1, agent.NumObstacleNeighbors())
	assert.Equal(t, 0, agent.ObstacleNeighbor(0), "only the facing edge is a neighbour")
	assert.Less(t, agent.Position().Y, -0.19)
	assert.Greater(t, agent.Position().Y, -1.0, "agent still approached the wall")
}

func TestAgentLine_CoincidentAgents(t *testing.T) {
	a := newAgent(0, KindSimple, physics.Vec(1, 1), testParams())
	b := newAgent(1, KindSimple, physics.Vec(1, 1), testParams())

	a.addAgentLine(b, 0.25)
	b.addAgentLine(a, 0.25)

	// Combined radius 1 over a step of 0.25, half of it per agent.
	assertVec(t, physics.Vec(-2, 0), a.orcaLines[0].Point)
	assertVec(t, physics.Vec(0, 1), a.orcaLines[0].Direction)
	assertVec(t, physics.Vec(2, 0), b.orcaLines[0].Point)
	assertVec(t, physics.Vec(0, -1), b.orcaLines[0].Direction)

	w := New(WithTimeStep(0.25), WithWorkers(1))
	first, err := w.AddAgent(physics.Vec(3, 3), testParams())
	require.NoError(t, err)
	second, err := w.AddAgent(physics.Vec(3, 3), testParams())
	require.NoError(t, err)

	_, err = w.DoStep()
	require.NoError(t, err)

	left, _ := w.Agent(first)
	right, _ := w.Agent(second)
	assert.True(t, left.Position().IsFinite())
	assert.True(t, right.Position().IsFinite())
	assert.Less(t, left.Position().X, right.Position().X)
}

func TestComputeNewVelocity_NonFinitePreference(t *testing.T) {
	a := newAgent(0, KindSimple, physics.Zero, testParams())
	a.prefVelocity = physics.Vec(math.NaN(), 0)

	a.computeNewVelocity(nil, 0.1)
	assert.Equal(t, physics.Zero, a.newVelocity)
}

func TestComputeNewVelocity_CrowdAgainstWall(t *testing.T) {
	arena, _, err := appendPolygon(nil, []physics.Vector2{physics.Vec(-5, 0), physics.Vec(5, 0)})
	require.NoError(t, err)

	// b overlaps a from below and pushes it into the wall faster than
	// a's max speed allows.
	a := newAgent(0, KindSimple, physics.Vec(0, -0.4), testParams())
	b := newAgent(1, KindSimple, physics.Vec(0, -0.8), testParams())
	a.obstacleNeighbors = []obstacleNeighbor{{obstacle: 0}}
	a.agentNeighbors = []agentNeighbor{{agent: b}}

	a.computeNewVelocity(arena, 0.1)
	require.Len(t, a.orcaLines, 2)

	wall, push := a.orcaLines[0], a.orcaLines[1]
	assertVec(t, physics.Vec(-1, 0), wall.Direction)
	assertVec(t, physics.Vec(0, 3), push.Point)

	_, failed := linearProgram2(a.orcaLines, a.maxSpeed, a.prefVelocity, false)
	require.Equal(t, 1, failed, "the agent line cannot be met")

	v := a.newVelocity
	assert.LessOrEqual(t, wall.Violation(v), 1e-9, "the wall stays hard")
	assert.InDelta(t, 3, push.Violation(v), 1e-9, "the push is relaxed as little as possible")
	assert.LessOrEqual(t, v.Abs(), a.maxSpeed+1e-9)
}

func TestAddObstacleLine(t *testing.T) {
	square := []physics.Vector2{physics.Vec(0, 0), physics.Vec(1, 0), physics.Vec(1, 1), physics.Vec(0, 1)}
	segment := []physics.Vector2{physics.Vec(0, 0), physics.Vec(1, 0)}
	room := []physics.Vector2{physics.Vec(0, 4), physics.Vec(4, 4), physics.Vec(4, 0), physics.Vec(0, 0)}

	invSqrt := func(v float64) float64 { return 1 / math.Sqrt(v) }
	// Left leg of the square's bottom edge seen from (0.5, -2).
	leftLeg := physics.Vec(-2, 3.75).Scale(1 / 4.25)
	obliqueW := physics.Vec(-2, -0.2).Scale(invSqrt(4.04))
	circleW := physics.Vec(-0.5, -1).Scale(invSqrt(1.25))

	tests := []struct {
		name     string
		polygon  []physics.Vector2
		position physics.Vector2
		velocity physics.Vector2
		expected []physics.Line
	}{
		{
			name:     "Left vertex collision",
			polygon:  square,
			position: physics.Vec(-0.3, -0.1),
			expected: []physics.Line{{Direction: physics.Vec(-0.1, 0.3).Scale(invSqrt(0.1))}},
		},
		{
			name:     "Right vertex collision",
			polygon:  segment,
			position: physics.Vec(1.3, -0.1),
			expected: []physics.Line{{Direction: physics.Vec(-0.1, -0.3).Scale(invSqrt(0.1))}},
		},
		{
			name:     "Right vertex collision left to the next edge",
			polygon:  square,
			position: physics.Vec(1.3, -0.1),
		},
		{
			name:     "Segment collision",
			polygon:  square,
			position: physics.Vec(0.5, -0.3),
			expected: []physics.Line{{Direction: physics.Vec(-1, 0)}},
		},
		{
			name:     "Oblique view of a convex vertex",
			polygon:  square,
			position: physics.Vec(-2, -0.2),
			expected: []physics.Line{{
				Point:     physics.Vec(2, 0.2).Add(obliqueW.Scale(0.5)),
				Direction: physics.Vec(obliqueW.Y, -obliqueW.X),
			}},
		},
		{
			name:     "Oblique view of a reflex vertex",
			polygon:  room,
			position: physics.Vec(-2, 3.8),
		},
		{
			name:     "Reflex vertices extend the cut-off line",
			polygon:  room,
			position: physics.Vec(2, 2),
			expected: []physics.Line{{Point: physics.Vec(-2, 1.5), Direction: physics.Vec(-1, 0)}},
		},
		{
			name:     "Closest to a foreign leg",
			polygon:  square,
			position: physics.Vec(-2, -1),
			velocity: physics.Vec(1.5, 2),
		},
		{
			name:     "Cut-off circle",
			polygon:  square,
			position: physics.Vec(0.5, -2),
			velocity: physics.Vec(-1, 1),
			expected: []physics.Line{{
				Point:     physics.Vec(-0.5, 2).Add(circleW.Scale(0.5)),
				Direction: physics.Vec(circleW.Y, -circleW.X),
			}},
		},
		{
			name:     "Left leg",
			polygon:  square,
			position: physics.Vec(0.5, -2),
			velocity: physics.Vec(-0.5, 2).Add(leftLeg),
			expected: []physics.Line{{
				Point:     physics.Vec(-0.5, 2).Add(leftLeg.Perp().Scale(0.5)),
				Direction: leftLeg,
			}},
		},
	}

	p := testParams()
	p.TimeHorizonObst = 1

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arena, first, err := appendPolygon(nil, tt.polygon)
			require.NoError(t, err)

			a := newAgent(0, KindSimple, tt.position, p)
			a.velocity = tt.velocity
			a.addObstacleLine(arena, first)

			require.Len(t, a.orcaLines, len(tt.expected))
			for i, want := range tt.expected {
				assertVec(t, want.Point, a.orcaLines[i].Point, "point")
				assertVec(t, want.Direction, a.orcaLines[i].Direction, "direction")
			}
		})
	}
}

func TestAddObstacleLine_SkipsCoveredEdge(t *testing.T) {
	arena, first, err := appendPolygon(nil, []physics.Vector2{
		physics.Vec(0, 4), physics.Vec(4, 4), physics.Vec(4, 0), physics.Vec(0, 0),
	})
	require.NoError(t, err)

	p := testParams()
	p.TimeHorizonObst = 1
	a := newAgent(0, KindSimple, physics.Vec(2, 2), p)

	a.addObstacleLine(arena, first)
	a.addObstacleLine(arena, first)
	assert.Len(t, a.orcaLines, 1)
}
