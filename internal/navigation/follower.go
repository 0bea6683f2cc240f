// Package navigation turns A* cell paths into preferred velocities for the
// rvo engine.
package navigation

import (
	"github.com/zeusync/orca/pkg/astar"
	"github.com/zeusync/orca/pkg/physics"
)

// arriveDist is how close an agent must come to a waypoint before the
// follower moves on to the next one.
const arriveDist = 1.0

// Mapping converts between grid cells and world coordinates. The grid is
// centred on the world origin.
type Mapping struct {
	Width  int
	Height int
}

// CellToWorld returns the world position of a cell.
func (m Mapping) CellToWorld(p astar.Point) physics.Vector2 {
	return physics.Vec(float64(p.X-m.Width/2), float64(p.Y-m.Height/2))
}

// WorldToCell truncates a world position to the cell containing it.
func (m Mapping) WorldToCell(v physics.Vector2) astar.Point {
	return astar.Point{X: int(v.X) + m.Width/2, Y: int(v.Y) + m.Height/2}
}

// Follower walks an agent along a list of world-space waypoints.
type Follower struct {
	waypoints []physics.Vector2
	index     int
}

// NewFollower returns a follower over the given waypoints.
func NewFollower(waypoints []physics.Vector2) *Follower {
	return &Follower{waypoints: append([]physics.Vector2(nil), waypoints...)}
}

// FollowPath converts an A* path into a follower that ends at goal. Cell
// centres only approximate the goal, so it is appended as the last waypoint.
func FollowPath(m Mapping, path []astar.Point, goal physics.Vector2) *Follower {
	waypoints := make([]physics.Vector2, 0, len(path)+1)
	for _, p := range path {
		waypoints = append(waypoints, m.CellToWorld(p))
	}
	return &Follower{waypoints: append(waypoints, goal)}
}

// Target returns the waypoint to steer toward from position, advancing
// past waypoints that are already within reach. The last waypoint is kept
// once reached. It reports false when the follower has no waypoints.
func (f *Follower) Target(position physics.Vector2) (physics.Vector2, bool) {
	if len(f.waypoints) == 0 {
		return physics.Zero, false
	}

	for f.index < len(f.waypoints)-1 && position.Sub(f.waypoints[f.index]).Abs() < arriveDist {
		f.index++
	}
	return f.waypoints[f.index], true
}

// Index is the position of the current waypoint.
func (f *Follower) Index() int { return f.index }

func (f *Follower) Len() int { return len(f.waypoints) }

// Done reports whether the follower has reached its final waypoint.
func (f *Follower) Done(position physics.Vector2) bool {
	if len(f.waypoints) == 0 {
		return true
	}
	last := len(f.waypoints) - 1
	return f.index == last && position.Sub(f.waypoints[last]).Abs() < arriveDist
}
