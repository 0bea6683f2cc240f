package astar

import "strings"

// Grid is a width x height cell map indexed Cells[x][y]. A cell is blocked
// when the low bit of its byte is set.
type Grid struct {
	Cells  [][]byte
	Width  int
	Height int
}

// NewGrid allocates an all-open grid.
func NewGrid(width, height int) Grid {
	cells := make([][]byte, width)
	for x := range cells {
		cells[x] = make([]byte, height)
	}
	return Grid{Cells: cells, Width: width, Height: height}
}

// ParseRows builds a grid from text rows where '#' marks a blocked cell.
// Row i is y = i, column j is x = j; short rows are padded as open.
func ParseRows(rows []string) Grid {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	g := NewGrid(width, len(rows))
	for y, row := range rows {
		for x, c := range []byte(strings.TrimRight(row, "\r")) {
			if c == '#' {
				g.Cells[x][y] = 1
			}
		}
	}
	return g
}

// SetBlocked marks or clears a cell. Out-of-range cells are ignored.
func (g Grid) SetBlocked(x, y int, blocked bool) {
	if !g.inBounds(x, y) || x >= len(g.Cells) || y >= len(g.Cells[x]) {
		return
	}
	if blocked {
		g.Cells[x][y] |= 1
	} else {
		g.Cells[x][y] &^= 1
	}
}

// Blocked reports whether the cell cannot be entered. Cells outside the
// declared bounds, or outside the backing slices, count as blocked.
func (g Grid) Blocked(x, y int) bool {
	if !g.inBounds(x, y) {
		return true
	}
	if x >= len(g.Cells) || y >= len(g.Cells[x]) {
		return true
	}
	return g.Cells[x][y]&0x1 != 0
}

func (g Grid) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// FindPath is Find on the receiver's cells.
func (g Grid) FindPath(start, end Point, searchRadiusLimit int) []Point {
	return Find(g.Cells, g.Width, g.Height, start.X, start.Y, end.X, end.Y, searchRadiusLimit)
}
