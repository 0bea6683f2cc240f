package rvo

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/zeusync/orca/internal/core/observability/log"
	"github.com/zeusync/orca/pkg/physics"
)

// AddGroup registers and activates an empty composite agent built from
// the agent defaults. Members join with AddAgentToGroup; the group then
// stands in for them as one bounding disc.
func (w *World) AddGroup(position physics.Vector2) (int, error) {
	if w.stepping.Load() {
		return -1, ErrStepInProgress
	}
	if w.defaults == nil {
		return -1, ErrNoAgentDefaults
	}

	g := newAgent(len(w.agents), KindComposite, position, *w.defaults)
	w.agents = append(w.agents, g)
	w.activate(g)
	w.refreshGroup(g)

	w.logger.Debug("Group created", log.Int("group", g.id))

	return g.id, nil
}

func (w *World) group(id int) (*Agent, error) {
	g, err := w.Agent(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrGroupNotFound, id)
	}
	if g.kind != KindComposite {
		return nil, fmt.Errorf("%w: %d", ErrNotAGroup, id)
	}
	return g, nil
}

// AddAgentToGroup moves an agent out of the simulated set into a group.
func (w *World) AddAgentToGroup(id, groupID int) error {
	if w.stepping.Load() {
		return ErrStepInProgress
	}

	g, err := w.group(groupID)
	if err != nil {
		return err
	}
	a, err := w.Agent(id)
	if err != nil {
		return err
	}

	switch {
	case a.kind == KindComposite:
		return fmt.Errorf("%w: agent %d", ErrNestedGroup, id)
	case a.group >= 0:
		return fmt.Errorf("%w: agent %d in group %d", ErrAgentInGroup, id, a.group)
	}

	w.deactivate(a)
	a.group = g.id
	g.children = append(g.children, a.id)
	w.refreshGroup(g)

	w.logger.Debug("Agent joined group",
		log.Int("agent", id),
		log.Int("group", groupID),
		log.Int("members", len(g.children)),
	)

	return nil
}

// ReturnAgentFromGroup moves a member back into the simulated set.
func (w *World) ReturnAgentFromGroup(id, groupID int) error {
	if w.stepping.Load() {
		return ErrStepInProgress
	}

	g, err := w.group(groupID)
	if err != nil {
		return err
	}
	if !lo.Contains(g.children, id) {
		return fmt.Errorf("%w: agent %d, group %d", ErrAgentNotInGroup, id, groupID)
	}

	a := w.agents[id]
	g.children = lo.Without(g.children, id)
	a.group = -1
	w.activate(a)
	w.refreshGroup(g)

	w.logger.Debug("Agent left group",
		log.Int("agent", id),
		log.Int("group", groupID),
		log.Int("members", len(g.children)),
	)

	return nil
}

// RemoveGroup dissolves a group: its members return to the simulated set
// and the group itself is unregistered.
func (w *World) RemoveGroup(groupID int) error {
	if w.stepping.Load() {
		return ErrStepInProgress
	}

	g, err := w.group(groupID)
	if err != nil {
		return err
	}

	for _, id := range g.children {
		child := w.agents[id]
		child.group = -1
		w.activate(child)
	}
	released := len(g.children)
	g.children = nil

	w.deactivate(g)
	w.agents[groupID] = nil

	w.logger.Debug("Group removed", log.Int("group", groupID), log.Int("released", released))

	return nil
}

// refreshGroup recomputes a group's bounding box, disc and mass from its
// members. An empty group keeps its position with zero radius and unit
// mass.
func (w *World) refreshGroup(g *Agent) {
	if len(g.children) == 0 {
		g.boundsMin, g.boundsMax = g.position, g.position
		g.radius = 0
		g.mass = 1
		return
	}

	first := w.agents[g.children[0]]
	lower, upper := first.position, first.position
	mass, maxRadius := 0.0, 0.0

	for _, id := range g.children {
		c := w.agents[id]
		lower = physics.Vec(math.Min(lower.X, c.position.X), math.Min(lower.Y, c.position.Y))
		upper = physics.Vec(math.Max(upper.X, c.position.X), math.Max(upper.Y, c.position.Y))
		mass += c.mass
		maxRadius = math.Max(maxRadius, c.radius)
	}

	g.boundsMin, g.boundsMax = lower, upper
	g.position = lower.Add(upper).Scale(0.5)
	g.radius = upper.Sub(lower).Abs()/2 + maxRadius
	g.mass = mass
}

// shiftGroup translates a group's bounds and members by delta.
func (w *World) shiftGroup(g *Agent, delta physics.Vector2) {
	g.boundsMin = g.boundsMin.Add(delta)
	g.boundsMax = g.boundsMax.Add(delta)
	for _, id := range g.children {
		c := w.agents[id]
		c.position = c.position.Add(delta)
	}
}
