// Package astar finds shortest 8-connected paths on a byte grid. It is the
// waypoint producer that feeds preferred velocities into the rvo package.
package astar

import (
	"github.com/zeusync/orca/pkg/sequence"
)

const (
	straightCost = 10
	diagonalCost = 14
)

// Point is a grid cell coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type node struct {
	x, y   int
	cost   int
	score  int
	closed bool
	parent *node
	item   *sequence.PriorityItem[*node]
}

var neighborOffsets = [8]struct{ dx, dy, cost int }{
	{-1, 0, straightCost},
	{0, -1, straightCost},
	{0, 1, straightCost},
	{1, 0, straightCost},
	{-1, -1, diagonalCost},
	{-1, 1, diagonalCost},
	{1, -1, diagonalCost},
	{1, 1, diagonalCost},
}

// Find returns the cell sequence from start to end, both included.
// It returns nil when start equals end, when either endpoint is blocked,
// when no path exists, or when the path has two points or fewer.
// Cells further than searchRadiusLimit from the goal on either axis are
// never expanded. The grid is indexed grid[x][y].
func Find(grid [][]byte, width, height, startX, startY, endX, endY, searchRadiusLimit int) []Point {
	if startX == endX && startY == endY {
		return nil
	}

	s := &search{
		grid:  Grid{Cells: grid, Width: width, Height: height},
		endX:  endX,
		endY:  endY,
		limit: searchRadiusLimit,
		nodes: make(map[int]*node),
		open:  sequence.NewPriorityQueue[*node](),
	}

	if s.grid.Blocked(startX, startY) || s.grid.Blocked(endX, endY) {
		return nil
	}

	return s.run(startX, startY)
}

type search struct {
	grid  Grid
	endX  int
	endY  int
	limit int
	nodes map[int]*node
	open  *sequence.PriorityQueue[*node]
}

func key(x, y int) int { return (y << 16) + x }

func (s *search) run(startX, startY int) []Point {
	start := s.newNode(startX, startY, 0, nil)
	start.item = s.open.Enqueue(start, start.score)

	for {
		current, ok := s.open.Dequeue()
		if !ok {
			return nil
		}
		if current.x == s.endX && current.y == s.endY {
			return collect(current)
		}
		current.closed = true

		for _, off := range neighborOffsets {
			s.check(current.x+off.dx, current.y+off.dy, current, off.cost)
		}
	}
}

func (s *search) newNode(x, y, cost int, parent *node) *node {
	n := &node{x: x, y: y, cost: cost, parent: parent}
	n.score = cost + s.heuristic(x, y)
	s.nodes[key(x, y)] = n
	return n
}

// heuristic is the octile distance to the goal in cost units.
func (s *search) heuristic(x, y int) int {
	dx := abs(x - s.endX)
	dy := abs(y - s.endY)
	lo, hi := dx, dy
	if lo > hi {
		lo, hi = hi, lo
	}
	return diagonalCost*lo + straightCost*(hi-lo)
}

func (s *search) check(x, y int, parent *node, stepCost int) {
	if abs(x-s.endX) > s.limit || abs(y-s.endY) > s.limit {
		return
	}
	if s.grid.Blocked(x, y) {
		return
	}

	cost := parent.cost + stepCost
	existing, seen := s.nodes[key(x, y)]
	if !seen {
		n := s.newNode(x, y, cost, parent)
		n.item = s.open.Enqueue(n, n.score)
		return
	}
	if existing.closed || existing.cost <= cost {
		return
	}

	existing.parent = parent
	existing.score = existing.score - existing.cost + cost
	existing.cost = cost
	s.open.Update(existing.item, existing.score)
}

func collect(end *node) []Point {
	var reversed []Point
	for n := end; n != nil; n = n.parent {
		reversed = append(reversed, Point{X: n.x, Y: n.y})
	}
	if len(reversed) <= 2 {
		return nil
	}

	path := make([]Point, len(reversed))
	for i, p := range reversed {
		path[len(reversed)-1-i] = p
	}
	return path
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
