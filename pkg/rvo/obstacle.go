package rvo

import (
	"github.com/zeusync/orca/pkg/physics"
)

// Obstacle is one vertex of a polygonal obstacle together with the edge
// leaving it. Vertices live in an arena owned by the World and refer to
// their neighbours by index, so edges can be split without invalidating
// references.
type Obstacle struct {
	ID        int
	Point     physics.Vector2
	Direction physics.Vector2 // unit vector towards Next
	Convex    bool
	Previous  int
	Next      int
}

// appendPolygon appends one closed cycle of obstacle vertices to the arena
// and returns the grown arena together with the id of the first vertex.
// Counter-clockwise vertex order bounds a solid obstacle; clockwise order
// bounds the walkable region from the inside.
func appendPolygon(arena []Obstacle, vertices []physics.Vector2) ([]Obstacle, int, error) {
	if len(vertices) < 2 {
		return arena, -1, ErrTooFewVertices
	}

	first := len(arena)
	n := len(vertices)
	for i := range vertices {
		prev := (i + n - 1) % n
		next := (i + 1) % n

		o := Obstacle{
			ID:        first + i,
			Point:     vertices[i],
			Direction: vertices[next].Sub(vertices[i]).Normalize(),
			Previous:  first + prev,
			Next:      first + next,
		}
		if n == 2 {
			o.Convex = true
		} else {
			o.Convex = physics.LeftOf(vertices[prev], vertices[i], vertices[next]) >= 0
		}
		arena = append(arena, o)
	}

	return arena, first, nil
}
