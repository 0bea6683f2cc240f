package astar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind_OpenGrid(t *testing.T) {
	g := NewGrid(5, 5)

	path := Find(g.Cells, 5, 5, 0, 0, 4, 4, 100)
	require.NotNil(t, path)
	assert.Greater(t, len(path), 2)
	assert.Equal(t, Point{0, 0}, path[0])
	assert.Equal(t, Point{4, 4}, path[len(path)-1])
	assert.Len(t, path, 5, "diagonal is the cheapest route")

	assert.Nil(t, Find(g.Cells, 5, 5, 0, 0, 0, 0, 100))
}

func TestFind_NilCases(t *testing.T) {
	g := NewGrid(5, 5)
	g.SetBlocked(4, 4, true)
	g.SetBlocked(0, 0, true)

	tests := []struct {
		name                   string
		sx, sy, ex, ey, radius int
	}{
		{name: "Blocked goal", sx: 2, sy: 2, ex: 4, ey: 4, radius: 100},
		{name: "Blocked start", sx: 0, sy: 0, ex: 3, ey: 3, radius: 100},
		{name: "Adjacent cells", sx: 1, sy: 1, ex: 2, ey: 2, radius: 100},
		{name: "Goal out of bounds", sx: 1, sy: 1, ex: 7, ey: 1, radius: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Find(g.Cells, g.Width, g.Height, tt.sx, tt.sy, tt.ex, tt.ey, tt.radius))
		})
	}
}

func TestFind_RoutesAroundWall(t *testing.T) {
	g := ParseRows([]string{
		".......",
		"...#...",
		"...#...",
		"...#...",
		".......",
	})

	path := g.FindPath(Point{1, 2}, Point{5, 2}, 100)
	require.NotNil(t, path)
	assert.Equal(t, Point{1, 2}, path[0])
	assert.Equal(t, Point{5, 2}, path[len(path)-1])

	for i, p := range path {
		assert.Falsef(t, g.Blocked(p.X, p.Y), "step %d at %v is blocked", i, p)
		if i > 0 {
			prev := path[i-1]
			assert.LessOrEqual(t, abs(p.X-prev.X), 1)
			assert.LessOrEqual(t, abs(p.Y-prev.Y), 1)
		}
	}
}

func TestFind_Unreachable(t *testing.T) {
	g := ParseRows([]string{
		"..#..",
		"..#..",
		"..#..",
	})

	assert.Nil(t, g.FindPath(Point{0, 1}, Point{4, 1}, 100))
}

func TestFind_SearchRadiusLimit(t *testing.T) {
	g := ParseRows([]string{
		".........",
		"....#....",
		"....#....",
		"....#....",
		".........",
	})

	assert.NotNil(t, g.FindPath(Point{2, 2}, Point{6, 2}, 4))
	assert.Nil(t, g.FindPath(Point{2, 2}, Point{6, 2}, 1), "detour leaves the search window")
}

func TestGrid_Blocked(t *testing.T) {
	g := Grid{Cells: [][]byte{{0, 3}, {2}}, Width: 2, Height: 2}

	assert.False(t, g.Blocked(0, 0))
	assert.True(t, g.Blocked(0, 1), "low bit set")
	assert.False(t, g.Blocked(1, 0), "only the low bit counts")
	assert.True(t, g.Blocked(1, 1), "short backing slice")
	assert.True(t, g.Blocked(-1, 0))
	assert.True(t, g.Blocked(0, 2))
}
