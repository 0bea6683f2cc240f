package rvo

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"

	"github.com/zeusync/orca/pkg/physics"
)

// AgentState is the externally visible state of one agent.
type AgentState struct {
	ID       int             `json:"id"`
	Kind     string          `json:"kind"`
	Group    int             `json:"group"`
	Position physics.Vector2 `json:"position"`
	Velocity physics.Vector2 `json:"velocity"`
	Radius   float64         `json:"radius"`
	Mass     float64         `json:"mass"`
}

// Snapshot is a point-in-time copy of every simulated agent and every
// group member.
type Snapshot struct {
	Time   float64      `json:"time"`
	Digest uint64       `json:"digest"`
	Agents []AgentState `json:"agents"`
}

// Snapshot copies the visible state. It must not overlap DoStep.
func (w *World) Snapshot() Snapshot {
	visible := lo.Filter(w.agents, func(a *Agent, _ int) bool {
		return a != nil && (a.active || a.group >= 0)
	})

	return Snapshot{
		Time:   w.globalTime,
		Digest: w.Digest(),
		Agents: lo.Map(visible, func(a *Agent, _ int) AgentState {
			return AgentState{
				ID:       a.id,
				Kind:     a.kind.String(),
				Group:    a.group,
				Position: a.position,
				Velocity: a.velocity,
				Radius:   a.radius,
				Mass:     a.mass,
			}
		}),
	}
}

// Digest hashes the global time and the kinematic state of every
// registered agent in id order. Equal digests mean bit-identical runs.
func (w *World) Digest() uint64 {
	d := xxhash.New()
	var buf [8]byte

	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}

	write(w.globalTime)
	for _, a := range w.agents {
		if a == nil {
			continue
		}
		binary.LittleEndian.PutUint64(buf[:], uint64(a.id))
		_, _ = d.Write(buf[:])
		write(a.position.X)
		write(a.position.Y)
		write(a.velocity.X)
		write(a.velocity.Y)
	}

	return d.Sum64()
}
