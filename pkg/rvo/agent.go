package rvo

import (
	"github.com/zeusync/orca/pkg/physics"
)

// Kind tags the agent variant.
type Kind uint8

const (
	// KindSimple is a single disc steered by its own ORCA solve.
	KindSimple Kind = iota
	// KindComposite is a group proxy standing in for its children.
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// AgentParams are the tunables of a single agent. The zero Mass is read
// as 1.
type AgentParams struct {
	NeighborDist    float64         `yaml:"neighbor_dist" json:"neighbor_dist"`
	MaxNeighbors    int             `yaml:"max_neighbors" json:"max_neighbors"`
	TimeHorizon     float64         `yaml:"time_horizon" json:"time_horizon"`
	TimeHorizonObst float64         `yaml:"time_horizon_obst" json:"time_horizon_obst"`
	Radius          float64         `yaml:"radius" json:"radius"`
	MaxSpeed        float64         `yaml:"max_speed" json:"max_speed"`
	Velocity        physics.Vector2 `yaml:"velocity" json:"velocity"`
	Mass            float64         `yaml:"mass" json:"mass"`
}

type agentNeighbor struct {
	distSq float64
	agent  *Agent
}

type obstacleNeighbor struct {
	distSq   float64
	obstacle int
}

// Agent is one ORCA entity. A composite agent owns the ids of its children
// and moves them along with itself.
type Agent struct {
	id   int
	kind Kind

	position     physics.Vector2
	velocity     physics.Vector2
	prefVelocity physics.Vector2
	newVelocity  physics.Vector2

	radius          float64
	maxSpeed        float64
	neighborDist    float64
	maxNeighbors    int
	timeHorizon     float64
	timeHorizonObst float64
	mass            float64

	agentNeighbors    []agentNeighbor
	obstacleNeighbors []obstacleNeighbor
	orcaLines         []physics.Line

	active bool
	group  int // owning group id, -1 when free

	children  []int
	boundsMin physics.Vector2
	boundsMax physics.Vector2
}

func newAgent(id int, kind Kind, position physics.Vector2, p AgentParams) *Agent {
	a := &Agent{
		id:       id,
		kind:     kind,
		position: position,
		group:    -1,
	}
	a.apply(p)
	return a
}

func (a *Agent) apply(p AgentParams) {
	a.neighborDist = p.NeighborDist
	a.maxNeighbors = p.MaxNeighbors
	a.timeHorizon = p.TimeHorizon
	a.timeHorizonObst = p.TimeHorizonObst
	a.radius = p.Radius
	a.maxSpeed = p.MaxSpeed
	a.velocity = p.Velocity
	a.mass = p.Mass
	if a.mass <= 0 {
		a.mass = 1
	}
}

// ID is the agent's index in the world.
func (a *Agent) ID() int { return a.id }

// Kind reports whether the agent is simple or composite.
func (a *Agent) Kind() Kind { return a.kind }

// IsGroup reports whether the agent stands for a group of members.
func (a *Agent) IsGroup() bool { return a.kind == KindComposite }

// Position is the agent's centre.
func (a *Agent) Position() physics.Vector2 { return a.position }

// Velocity is the velocity applied in the last step.
func (a *Agent) Velocity() physics.Vector2 { return a.velocity }

// PrefVelocity is the velocity the agent would take if unobstructed.
func (a *Agent) PrefVelocity() physics.Vector2 { return a.prefVelocity }

// Radius is the agent's collision radius.
func (a *Agent) Radius() float64 { return a.radius }

// MaxSpeed bounds the magnitude of new velocities.
func (a *Agent) MaxSpeed() float64 { return a.maxSpeed }

// NeighborDist is the range within which other agents are considered.
func (a *Agent) NeighborDist() float64 { return a.neighborDist }

// MaxNeighbors caps how many agents are considered.
func (a *Agent) MaxNeighbors() int { return a.maxNeighbors }

// TimeHorizon is the look-ahead used against other agents.
func (a *Agent) TimeHorizon() float64 { return a.timeHorizon }

// TimeHorizonObst is the look-ahead used against obstacles.
func (a *Agent) TimeHorizonObst() float64 { return a.timeHorizonObst }

// Mass weighs the agent's share of avoidance effort.
func (a *Agent) Mass() float64 { return a.mass }

// Active reports whether the agent takes part in the simulation.
func (a *Agent) Active() bool { return a.active }

// Group returns the id of the owning group.
func (a *Agent) Group() (int, bool) { return a.group, a.group >= 0 }

// Children returns a copy of a composite agent's member ids.
func (a *Agent) Children() []int {
	return append([]int(nil), a.children...)
}

// Bounds returns the corners of a composite agent's member bounding box.
func (a *Agent) Bounds() (lower, upper physics.Vector2) {
	return a.boundsMin, a.boundsMax
}

// NumAgentNeighbors is the number of agents found by the last neighbor query.
func (a *Agent) NumAgentNeighbors() int { return len(a.agentNeighbors) }

// AgentNeighbor returns the id of the i-th nearest agent neighbor.
func (a *Agent) AgentNeighbor(i int) int { return a.agentNeighbors[i].agent.id }

// NumObstacleNeighbors is the number of obstacle edges found by the last
// neighbor query.
func (a *Agent) NumObstacleNeighbors() int { return len(a.obstacleNeighbors) }

// ObstacleNeighbor returns the obstacle vertex id of the i-th nearest
// obstacle edge.
func (a *Agent) ObstacleNeighbor(i int) int { return a.obstacleNeighbors[i].obstacle }

// OrcaLines returns a copy of the constraints built during the last step.
// Obstacle lines come first.
func (a *Agent) OrcaLines() []physics.Line {
	return append([]physics.Line(nil), a.orcaLines...)
}

func (a *Agent) computeNeighbors(agents *agentTree, obstacles *obstacleTree) {
	a.obstacleNeighbors = a.obstacleNeighbors[:0]
	rangeSq := physics.Sqr(a.timeHorizonObst*a.maxSpeed + a.radius)
	obstacles.computeNeighbors(a, rangeSq)

	a.agentNeighbors = a.agentNeighbors[:0]
	if a.maxNeighbors > 0 {
		rangeSq = physics.Sqr(a.neighborDist)
		agents.computeNeighbors(a, &rangeSq)
	}
}

// insertAgentNeighbor keeps agentNeighbors sorted by distance and capped at
// maxNeighbors, shrinking rangeSq once the list is full.
func (a *Agent) insertAgentNeighbor(other *Agent, rangeSq *float64) {
	if a == other {
		return
	}

	distSq := a.position.Sub(other.position).AbsSq()
	if distSq >= *rangeSq {
		return
	}

	if len(a.agentNeighbors) < a.maxNeighbors {
		a.agentNeighbors = append(a.agentNeighbors, agentNeighbor{distSq: distSq, agent: other})
	}

	i := len(a.agentNeighbors) - 1
	for i != 0 && distSq < a.agentNeighbors[i-1].distSq {
		a.agentNeighbors[i] = a.agentNeighbors[i-1]
		i--
	}
	a.agentNeighbors[i] = agentNeighbor{distSq: distSq, agent: other}

	if len(a.agentNeighbors) == a.maxNeighbors {
		*rangeSq = a.agentNeighbors[len(a.agentNeighbors)-1].distSq
	}
}

func (a *Agent) insertObstacleNeighbor(arena []Obstacle, obstacle int, rangeSq float64) {
	o := &arena[obstacle]
	next := &arena[o.Next]

	distSq := physics.DistSqPointLineSegment(o.Point, next.Point, a.position)
	if distSq >= rangeSq {
		return
	}

	a.obstacleNeighbors = append(a.obstacleNeighbors, obstacleNeighbor{distSq: distSq, obstacle: obstacle})

	i := len(a.obstacleNeighbors) - 1
	for i != 0 && distSq < a.obstacleNeighbors[i-1].distSq {
		a.obstacleNeighbors[i] = a.obstacleNeighbors[i-1]
		i--
	}
	a.obstacleNeighbors[i] = obstacleNeighbor{distSq: distSq, obstacle: obstacle}
}
