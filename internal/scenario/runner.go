// Package scenario builds a World from a config and drives it tick by
// tick, steering every agent that has a goal.
package scenario

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/zeusync/orca/internal/config"
	"github.com/zeusync/orca/internal/core/observability/log"
	"github.com/zeusync/orca/internal/navigation"
	"github.com/zeusync/orca/pkg/astar"
	"github.com/zeusync/orca/pkg/physics"
	"github.com/zeusync/orca/pkg/rvo"
)

// Observer receives the snapshot taken after every tick.
type Observer interface {
	Observe(snap rvo.Snapshot) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(snap rvo.Snapshot) error

func (f ObserverFunc) Observe(snap rvo.Snapshot) error { return f(snap) }

// steered is an agent or group with somewhere to go.
type steered struct {
	id       int
	follower *navigation.Follower
}

// Runner owns a configured World.
type Runner struct {
	world    *rvo.World
	logger   log.Log
	steering *navigation.Steering

	grid    *astar.Grid
	mapping navigation.Mapping
	radius  int

	steered   []steered
	agentIDs  []int
	groupIDs  []int
	observers []Observer
	tick      uint64
}

// Option configures a Runner.
type Option func(*Runner)

// WithSeed seeds the preferred velocity perturbation.
func WithSeed(seed uint64) Option {
	return func(r *Runner) { r.steering = navigation.NewSteering(seed) }
}

// WithObserver registers an observer called after every tick.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// Build creates the World described by c: obstacles are added and
// processed, agents are registered, groups formed and every goal is
// routed through the grid when one is configured.
func Build(c *config.Config, logger log.Log, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	r := &Runner{
		world: rvo.New(
			rvo.WithLogger(logger.With(log.String("component", "world"))),
			rvo.WithTimeStep(c.World.TimeStep),
			rvo.WithWorkers(c.World.Workers),
		),
		logger:   logger.With(log.String("component", "scenario")),
		steering: navigation.NewSteering(1),
		radius:   c.Grid.SearchRadius,
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(c.Grid.Rows) > 0 {
		grid := astar.ParseRows(c.Grid.Rows)
		r.grid = &grid
		r.mapping = navigation.Mapping{Width: grid.Width, Height: grid.Height}
	}

	w := r.world
	w.SetAgentDefaults(c.World.AgentDefaults)

	for i, o := range c.Obstacles {
		if _, err := w.AddObstacle(o.Vertices); err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
	}
	if err := w.ProcessObstacles(); err != nil {
		return nil, fmt.Errorf("process obstacles: %w", err)
	}

	grouped := make(map[int]bool)
	for _, g := range c.Groups {
		for _, m := range g.Members {
			grouped[m] = true
		}
	}

	for i, ac := range c.Agents {
		params := c.World.AgentDefaults
		if ac.Params != nil {
			params = *ac.Params
		}
		if ac.Mass > 0 {
			params.Mass = ac.Mass
		}

		id, err := w.AddAgent(ac.Position, params)
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		r.agentIDs = append(r.agentIDs, id)

		if ac.Goal != nil && !grouped[i] {
			r.steer(id, ac.Position, *ac.Goal)
		}
	}

	for i, gc := range c.Groups {
		gid, err := w.AddGroup(physics.Zero)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		for _, m := range gc.Members {
			if err = w.AddAgentToGroup(r.agentIDs[m], gid); err != nil {
				return nil, fmt.Errorf("group %d: %w", i, err)
			}
		}
		r.groupIDs = append(r.groupIDs, gid)

		if gc.Goal != nil {
			g, _ := w.Agent(gid)
			r.steer(gid, g.Position(), *gc.Goal)
		}
	}

	r.logger.Info("Scenario built",
		log.Int("agents", len(r.agentIDs)),
		log.Int("groups", len(r.groupIDs)),
		log.Int("obstacle_vertices", w.NumObstacleVertices()),
		log.Int("steered", len(r.steered)),
	)

	return r, nil
}

// steer routes id from start to goal. Without a grid, or when A* finds
// no path, the agent heads straight for the goal.
func (r *Runner) steer(id int, start, goal physics.Vector2) {
	follower := navigation.NewFollower([]physics.Vector2{goal})

	if r.grid != nil {
		path := r.grid.FindPath(r.mapping.WorldToCell(start), r.mapping.WorldToCell(goal), r.radius)
		if path != nil {
			follower = navigation.FollowPath(r.mapping, path, goal)
		} else {
			r.logger.Debug("No grid path, steering directly", log.Int("agent", id))
		}
	}

	r.steered = append(r.steered, steered{id: id, follower: follower})
}

// World is the simulated world.
func (r *Runner) World() *rvo.World { return r.world }

// AgentIDs maps config agent indices to world ids.
func (r *Runner) AgentIDs() []int { return append([]int(nil), r.agentIDs...) }

// GroupIDs maps config group indices to world ids.
func (r *Runner) GroupIDs() []int { return append([]int(nil), r.groupIDs...) }

// Tick is the number of steps taken.
func (r *Runner) Tick() uint64 { return r.tick }

// Arrived reports whether every steered agent reached its final waypoint.
func (r *Runner) Arrived() bool {
	return lo.EveryBy(r.steered, func(s steered) bool {
		a, err := r.world.Agent(s.id)
		return err != nil || s.follower.Done(a.Position())
	})
}

// Step refreshes preferred velocities, advances the world once and
// notifies observers.
func (r *Runner) Step() error {
	for _, s := range r.steered {
		a, err := r.world.Agent(s.id)
		if err != nil {
			continue
		}

		pref := physics.Zero
		if goal, ok := s.follower.Target(a.Position()); ok {
			pref = r.steering.PreferredVelocity(a.Position(), goal, a.MaxSpeed())
		}
		if err = r.world.SetAgentPrefVelocity(s.id, pref); err != nil {
			return err
		}
	}

	if _, err := r.world.DoStep(); err != nil {
		return fmt.Errorf("tick %d: %w", r.tick, err)
	}
	r.tick++

	if len(r.observers) == 0 {
		return nil
	}

	snap := r.world.Snapshot()
	for _, o := range r.observers {
		if err := o.Observe(snap); err != nil {
			return fmt.Errorf("observe tick %d: %w", r.tick, err)
		}
	}
	return nil
}

// Run steps until steps ticks have been taken, every steered agent has
// arrived, or ctx is cancelled. steps <= 0 means no tick limit.
func (r *Runner) Run(ctx context.Context, steps int) error {
	start := r.tick
	defer func() {
		r.logger.Info("Run finished",
			log.Uint64("ticks", r.tick-start),
			log.Float64("global_time", r.world.GlobalTime()),
			log.Uint64("digest", r.world.Digest()),
		)
	}()

	for steps <= 0 || r.tick-start < uint64(steps) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(r.steered) > 0 && r.Arrived() {
			r.logger.Info("All agents arrived", log.Uint64("tick", r.tick))
			return nil
		}
		if err := r.Step(); err != nil {
			return err
		}
	}
	return nil
}
