package navigation

import (
	"math"
	"math/rand/v2"

	"github.com/zeusync/orca/pkg/physics"
)

// maxPerturbation bounds the random nudge added to every preferred
// velocity so that perfectly symmetric encounters do not deadlock.
const maxPerturbation = 1e-4

// Steering computes preferred velocities toward goals.
type Steering struct {
	rng *rand.Rand
}

// NewSteering returns a steering helper with a seeded generator so runs
// are reproducible.
func NewSteering(seed uint64) *Steering {
	return &Steering{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// PreferredVelocity heads from position toward goal. Beyond one unit the
// direction is scaled to maxSpeed; closer in the raw offset is used so
// agents slow down on arrival.
func (s *Steering) PreferredVelocity(position, goal physics.Vector2, maxSpeed float64) physics.Vector2 {
	v := goal.Sub(position)
	if v.AbsSq() > 1 {
		v = v.Normalize().Scale(maxSpeed)
	}

	if s == nil || s.rng == nil {
		return v
	}

	angle := s.rng.Float64() * 2 * math.Pi
	dist := s.rng.Float64() * maxPerturbation
	return v.Add(physics.Vec(math.Cos(angle), math.Sin(angle)).Scale(dist))
}
