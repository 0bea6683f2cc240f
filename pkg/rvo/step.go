package rvo

import (
	"fmt"

	"github.com/zeusync/orca/pkg/concurrent"
)

// DoStep advances the simulation by one time step and returns the new
// global time.
//
// The agent tree is rebuilt first. Every worker then computes neighbours
// and new velocities for its slice of the simulated set, and only after
// all of them finish are positions integrated. Workers never write an
// agent outside their own slice.
func (w *World) DoStep() (float64, error) {
	if !w.stepping.CompareAndSwap(false, true) {
		return w.globalTime, ErrStepInProgress
	}
	defer w.stepping.Store(false)

	agents := w.active
	obstacles := w.obstacles
	ranges := concurrent.Partition(len(agents), w.workers)

	w.agentTree.build(agents)

	err := concurrent.ForEachRange(ranges, func(r concurrent.Range) error {
		for _, a := range agents[r.Begin:r.End] {
			a.computeNeighbors(&w.agentTree, w.obstacleTree)
			a.computeNewVelocity(obstacles, w.timeStep)
		}
		return nil
	})
	if err != nil {
		return w.globalTime, fmt.Errorf("compute velocities: %w", err)
	}

	err = concurrent.ForEachRange(ranges, func(r concurrent.Range) error {
		for _, a := range agents[r.Begin:r.End] {
			w.integrate(a)
		}
		return nil
	})
	if err != nil {
		return w.globalTime, fmt.Errorf("integrate: %w", err)
	}

	w.globalTime += w.timeStep

	return w.globalTime, nil
}

// integrate commits the solved velocity. Groups carry their members along
// and hand them the same velocity.
func (w *World) integrate(a *Agent) {
	a.velocity = a.newVelocity
	delta := a.velocity.Scale(w.timeStep)
	a.position = a.position.Add(delta)

	if a.kind != KindComposite {
		return
	}

	w.shiftGroup(a, delta)
	for _, id := range a.children {
		c := w.agents[id]
		c.velocity = a.velocity
		c.newVelocity = a.velocity
	}
}
