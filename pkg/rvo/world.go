// Package rvo implements optimal reciprocal collision avoidance for discs
// moving among polygonal obstacles. A World owns every agent and obstacle
// and advances them in two-phase parallel steps.
package rvo

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/zeusync/orca/internal/core/observability/log"
	"github.com/zeusync/orca/pkg/physics"
)

const defaultTimeStep = 0.1

// Option configures a World.
type Option func(*Options)

// Options holds the construction settings of a World.
type Options struct {
	Logger   log.Log // Destination for lifecycle logs
	TimeStep float64 // Seconds advanced per DoStep
	Workers  int     // Parallel partitions per phase; <= 0 selects GOMAXPROCS
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger log.Log) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithTimeStep sets the simulation time step.
func WithTimeStep(timeStep float64) Option {
	return func(o *Options) { o.TimeStep = timeStep }
}

// WithWorkers sets the number of parallel partitions per phase.
func WithWorkers(workers int) Option {
	return func(o *Options) { o.Workers = workers }
}

// World is the simulation context. Mutating calls must not overlap a
// running DoStep; they report ErrStepInProgress when they do.
type World struct {
	logger log.Log

	agents []*Agent // registry indexed by id, nil once removed
	active []*Agent // simulated set

	obstacles    []Obstacle
	obstacleTree *obstacleTree
	processed    bool
	agentTree    agentTree

	defaults   *AgentParams
	timeStep   float64
	globalTime float64
	workers    int

	stepping atomic.Bool
}

// New creates an empty World.
func New(opts ...Option) *World {
	o := Options{TimeStep: defaultTimeStep}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = log.NewNop()
	}
	if o.TimeStep <= 0 {
		o.TimeStep = defaultTimeStep
	}

	w := &World{logger: o.Logger}
	w.reset()
	w.timeStep = o.TimeStep
	w.SetNumWorkers(o.Workers)

	return w
}

func (w *World) reset() {
	w.agents = nil
	w.active = nil
	w.obstacles = nil
	w.obstacleTree = &obstacleTree{}
	w.processed = false
	w.agentTree = agentTree{}
	w.defaults = nil
	w.globalTime = 0
	w.timeStep = defaultTimeStep
}

// Clear drops every agent and obstacle, forgets the agent defaults and
// resets time and time step.
func (w *World) Clear() error {
	if w.stepping.Load() {
		return ErrStepInProgress
	}
	w.reset()
	w.SetNumWorkers(0)
	return nil
}

// SetAgentDefaults sets the parameters used by GetDefaultAgent and AddGroup.
func (w *World) SetAgentDefaults(p AgentParams) {
	w.defaults = &p
}

// SetNumWorkers sets the number of partitions per phase. Values <= 0
// select runtime.GOMAXPROCS.
func (w *World) SetNumWorkers(n int) {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n != w.workers {
		w.logger.Debug("Workers configured", log.Int("workers", n))
	}
	w.workers = n
}

func (w *World) NumWorkers() int { return w.workers }

// SetTimeStep sets the seconds advanced per step.
func (w *World) SetTimeStep(timeStep float64) error {
	if timeStep <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidTimeStep, timeStep)
	}
	w.timeStep = timeStep
	return nil
}

func (w *World) TimeStep() float64   { return w.timeStep }
func (w *World) GlobalTime() float64 { return w.globalTime }

func (w *World) SetGlobalTime(t float64) { w.globalTime = t }

// NumAgents returns the size of the simulated set.
func (w *World) NumAgents() int { return len(w.active) }

// NumWorldAgents returns the number of registered agents, simulated or not.
func (w *World) NumWorldAgents() int {
	return lo.CountBy(w.agents, func(a *Agent) bool { return a != nil })
}

// ActiveAgents returns the ids of the simulated set in stepping order.
func (w *World) ActiveAgents() []int {
	return lo.Map(w.active, func(a *Agent, _ int) int { return a.id })
}

// AddAgent registers and activates an agent with explicit parameters.
func (w *World) AddAgent(position physics.Vector2, p AgentParams) (int, error) {
	if w.stepping.Load() {
		return -1, ErrStepInProgress
	}

	a := newAgent(len(w.agents), KindSimple, position, p)
	w.agents = append(w.agents, a)
	w.activate(a)

	return a.id, nil
}

// GetDefaultAgent registers an agent built from the agent defaults. Agents
// created with addToActiveSet false stay in the registry only, e.g. until
// they join a group.
func (w *World) GetDefaultAgent(position physics.Vector2, addToActiveSet bool) (int, error) {
	if w.stepping.Load() {
		return -1, ErrStepInProgress
	}
	if w.defaults == nil {
		return -1, ErrNoAgentDefaults
	}

	a := newAgent(len(w.agents), KindSimple, position, *w.defaults)
	w.agents = append(w.agents, a)
	if addToActiveSet {
		w.activate(a)
	}

	return a.id, nil
}

// Agent returns the agent with the given id.
func (w *World) Agent(id int) (*Agent, error) {
	if id < 0 || id >= len(w.agents) || w.agents[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrAgentNotFound, id)
	}
	return w.agents[id], nil
}

// RemoveAgent unregisters an agent. A group releases its members first;
// a group member leaves its group.
func (w *World) RemoveAgent(id int) error {
	if w.stepping.Load() {
		return ErrStepInProgress
	}

	a, err := w.Agent(id)
	if err != nil {
		return err
	}

	if a.kind == KindComposite {
		return w.RemoveGroup(id)
	}
	if a.group >= 0 {
		if err = w.ReturnAgentFromGroup(id, a.group); err != nil {
			return err
		}
	}

	w.deactivate(a)
	w.agents[id] = nil

	return nil
}

func (w *World) activate(a *Agent) {
	if a.active {
		return
	}
	a.active = true
	w.active = append(w.active, a)
}

func (w *World) deactivate(a *Agent) {
	if !a.active {
		return
	}
	a.active = false
	w.active = lo.Without(w.active, a)
}

// update applies fn to a registered agent and keeps its group's bounding
// circle current.
func (w *World) update(id int, fn func(a *Agent)) error {
	if w.stepping.Load() {
		return ErrStepInProgress
	}

	a, err := w.Agent(id)
	if err != nil {
		return err
	}

	fn(a)
	if a.group >= 0 {
		w.refreshGroup(w.agents[a.group])
	}

	return nil
}

// SetAgentPrefVelocity sets the velocity the agent steers towards.
func (w *World) SetAgentPrefVelocity(id int, v physics.Vector2) error {
	return w.update(id, func(a *Agent) { a.prefVelocity = v })
}

func (w *World) SetAgentPosition(id int, p physics.Vector2) error {
	return w.update(id, func(a *Agent) {
		delta := p.Sub(a.position)
		a.position = p
		if a.kind == KindComposite {
			w.shiftGroup(a, delta)
		}
	})
}

func (w *World) SetAgentVelocity(id int, v physics.Vector2) error {
	return w.update(id, func(a *Agent) { a.velocity = v })
}

func (w *World) SetAgentRadius(id int, radius float64) error {
	return w.update(id, func(a *Agent) { a.radius = radius })
}

func (w *World) SetAgentMaxSpeed(id int, maxSpeed float64) error {
	return w.update(id, func(a *Agent) { a.maxSpeed = maxSpeed })
}

func (w *World) SetAgentNeighborDist(id int, neighborDist float64) error {
	return w.update(id, func(a *Agent) { a.neighborDist = neighborDist })
}

func (w *World) SetAgentMaxNeighbors(id int, maxNeighbors int) error {
	return w.update(id, func(a *Agent) { a.maxNeighbors = maxNeighbors })
}

func (w *World) SetAgentTimeHorizon(id int, timeHorizon float64) error {
	return w.update(id, func(a *Agent) { a.timeHorizon = timeHorizon })
}

func (w *World) SetAgentTimeHorizonObst(id int, timeHorizonObst float64) error {
	return w.update(id, func(a *Agent) { a.timeHorizonObst = timeHorizonObst })
}

// SetAgentMass sets the weight used when splitting avoidance effort with
// neighbours. Non-positive masses are stored as 1.
func (w *World) SetAgentMass(id int, mass float64) error {
	if mass <= 0 {
		mass = 1
	}
	return w.update(id, func(a *Agent) { a.mass = mass })
}

// AddObstacle registers a polygon and returns the id of its first vertex.
// It must be called before ProcessObstacles.
func (w *World) AddObstacle(vertices []physics.Vector2) (int, error) {
	if w.stepping.Load() {
		return -1, ErrStepInProgress
	}
	if w.processed {
		return -1, ErrObstaclesProcessed
	}

	arena, first, err := appendPolygon(w.obstacles, vertices)
	if err != nil {
		return -1, err
	}
	w.obstacles = arena

	return first, nil
}

// ProcessObstacles freezes the obstacles into the spatial index. Edges
// crossing a split line are cut, so the vertex count may grow.
func (w *World) ProcessObstacles() error {
	if w.stepping.Load() {
		return ErrStepInProgress
	}
	if w.processed {
		return ErrObstaclesProcessed
	}

	before := len(w.obstacles)
	w.obstacleTree = buildObstacleTree(w.obstacles)
	w.obstacles = w.obstacleTree.obstacles
	w.processed = true

	w.logger.Debug("Obstacles processed",
		log.Int("vertices", before),
		log.Int("split_vertices", len(w.obstacles)-before),
	)

	return nil
}

func (w *World) NumObstacleVertices() int { return len(w.obstacles) }

// Obstacle returns a copy of the obstacle vertex with the given id.
func (w *World) Obstacle(id int) (Obstacle, error) {
	if id < 0 || id >= len(w.obstacles) {
		return Obstacle{}, fmt.Errorf("%w: %d", ErrObstacleNotFound, id)
	}
	return w.obstacles[id], nil
}

// QueryVisibility reports whether p1 and p2 see each other with clearance
// radius around processed obstacles.
func (w *World) QueryVisibility(p1, p2 physics.Vector2, radius float64) bool {
	return w.obstacleTree.visible(p1, p2, radius)
}
