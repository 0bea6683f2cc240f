package rvo

import (
	"github.com/zeusync/orca/pkg/physics"
)

type obstacleTreeNode struct {
	obstacle int
	left     *obstacleTreeNode
	right    *obstacleTreeNode
}

// obstacleTree is a BSP over obstacle edges. Building it may split edges,
// so it owns the final obstacle arena.
type obstacleTree struct {
	root      *obstacleTreeNode
	obstacles []Obstacle
}

// splitScore orders candidate split edges by (larger side, smaller side).
type splitScore struct {
	hi, lo int
}

func newSplitScore(left, right int) splitScore {
	if left > right {
		return splitScore{hi: left, lo: right}
	}
	return splitScore{hi: right, lo: left}
}

func (s splitScore) less(o splitScore) bool {
	return s.hi < o.hi || (s.hi == o.hi && s.lo < o.lo)
}

func buildObstacleTree(arena []Obstacle) *obstacleTree {
	t := &obstacleTree{obstacles: arena}

	ids := make([]int, len(arena))
	for i := range ids {
		ids[i] = i
	}
	t.root = t.buildRecursive(ids)

	return t
}

func (t *obstacleTree) side(splitID, edgeID int) (float64, float64) {
	i1 := &t.obstacles[splitID]
	i2 := &t.obstacles[i1.Next]
	j1 := &t.obstacles[edgeID]
	j2 := &t.obstacles[j1.Next]

	return physics.LeftOf(i1.Point, i2.Point, j1.Point), physics.LeftOf(i1.Point, i2.Point, j2.Point)
}

func (t *obstacleTree) buildRecursive(ids []int) *obstacleTreeNode {
	if len(ids) == 0 {
		return nil
	}

	optimalSplit := 0
	best := newSplitScore(len(ids), len(ids))

	for i := range ids {
		leftSize, rightSize := 0, 0

		for j := range ids {
			if i == j {
				continue
			}

			j1LeftOfI, j2LeftOfI := t.side(ids[i], ids[j])
			switch {
			case j1LeftOfI >= -physics.Epsilon && j2LeftOfI >= -physics.Epsilon:
				leftSize++
			case j1LeftOfI <= physics.Epsilon && j2LeftOfI <= physics.Epsilon:
				rightSize++
			default:
				leftSize++
				rightSize++
			}

			if !newSplitScore(leftSize, rightSize).less(best) {
				break
			}
		}

		if score := newSplitScore(leftSize, rightSize); score.less(best) {
			best = score
			optimalSplit = i
		}
	}

	splitID := ids[optimalSplit]
	var leftIDs, rightIDs []int

	for j := range ids {
		if j == optimalSplit {
			continue
		}

		edgeID := ids[j]
		j1LeftOfI, j2LeftOfI := t.side(splitID, edgeID)

		switch {
		case j1LeftOfI >= -physics.Epsilon && j2LeftOfI >= -physics.Epsilon:
			leftIDs = append(leftIDs, edgeID)
		case j1LeftOfI <= physics.Epsilon && j2LeftOfI <= physics.Epsilon:
			rightIDs = append(rightIDs, edgeID)
		default:
			newID := t.splitEdge(splitID, edgeID)
			if j1LeftOfI > 0 {
				leftIDs = append(leftIDs, edgeID)
				rightIDs = append(rightIDs, newID)
			} else {
				rightIDs = append(rightIDs, edgeID)
				leftIDs = append(leftIDs, newID)
			}
		}
	}

	return &obstacleTreeNode{
		obstacle: splitID,
		left:     t.buildRecursive(leftIDs),
		right:    t.buildRecursive(rightIDs),
	}
}

// splitEdge cuts edge j where it crosses the supporting line of edge i and
// splices the new vertex into j's cycle.
func (t *obstacleTree) splitEdge(i, j int) int {
	i1 := t.obstacles[i]
	i2 := t.obstacles[i1.Next]
	j1 := t.obstacles[j]
	j2 := t.obstacles[j1.Next]

	splitDir := i2.Point.Sub(i1.Point)
	s := physics.Det(splitDir, j1.Point.Sub(i1.Point)) / physics.Det(splitDir, j1.Point.Sub(j2.Point))
	splitPoint := j1.Point.Add(j2.Point.Sub(j1.Point).Scale(s))

	id := len(t.obstacles)
	t.obstacles = append(t.obstacles, Obstacle{
		ID:        id,
		Point:     splitPoint,
		Direction: j1.Direction,
		Convex:    true,
		Previous:  j1.ID,
		Next:      j2.ID,
	})
	t.obstacles[j1.ID].Next = id
	t.obstacles[j2.ID].Previous = id

	return id
}

func (t *obstacleTree) computeNeighbors(a *Agent, rangeSq float64) {
	t.queryRecursive(a, rangeSq, t.root)
}

func (t *obstacleTree) queryRecursive(a *Agent, rangeSq float64, node *obstacleTreeNode) {
	if node == nil {
		return
	}

	o1 := &t.obstacles[node.obstacle]
	o2 := &t.obstacles[o1.Next]

	agentLeftOfLine := physics.LeftOf(o1.Point, o2.Point, a.position)

	near, far := node.left, node.right
	if agentLeftOfLine < 0 {
		near, far = node.right, node.left
	}

	t.queryRecursive(a, rangeSq, near)

	distSqLine := physics.Sqr(agentLeftOfLine) / o2.Point.Sub(o1.Point).AbsSq()
	if distSqLine < rangeSq {
		// Only the right side of an edge faces the agent.
		if agentLeftOfLine < 0 {
			a.insertObstacleNeighbor(t.obstacles, node.obstacle, rangeSq)
		}
		t.queryRecursive(a, rangeSq, far)
	}
}

// visible reports whether q1 and q2 see each other with the given
// clearance.
func (t *obstacleTree) visible(q1, q2 physics.Vector2, radius float64) bool {
	return t.visibleRecursive(q1, q2, radius, t.root)
}

func (t *obstacleTree) visibleRecursive(q1, q2 physics.Vector2, radius float64, node *obstacleTreeNode) bool {
	if node == nil {
		return true
	}

	o1 := &t.obstacles[node.obstacle]
	o2 := &t.obstacles[o1.Next]

	q1LeftOfI := physics.LeftOf(o1.Point, o2.Point, q1)
	q2LeftOfI := physics.LeftOf(o1.Point, o2.Point, q2)
	invLengthI := 1 / o2.Point.Sub(o1.Point).AbsSq()
	radiusSq := physics.Sqr(radius)

	beyondRadius := physics.Sqr(q1LeftOfI)*invLengthI >= radiusSq && physics.Sqr(q2LeftOfI)*invLengthI >= radiusSq

	switch {
	case q1LeftOfI >= 0 && q2LeftOfI >= 0:
		return t.visibleRecursive(q1, q2, radius, node.left) &&
			(beyondRadius || t.visibleRecursive(q1, q2, radius, node.right))
	case q1LeftOfI <= 0 && q2LeftOfI <= 0:
		return t.visibleRecursive(q1, q2, radius, node.right) &&
			(beyondRadius || t.visibleRecursive(q1, q2, radius, node.left))
	case q1LeftOfI >= 0 && q2LeftOfI <= 0:
		// Seeing through the edge from its back side.
		return t.visibleRecursive(q1, q2, radius, node.left) &&
			t.visibleRecursive(q1, q2, radius, node.right)
	}

	point1LeftOfQ := physics.LeftOf(q1, q2, o1.Point)
	point2LeftOfQ := physics.LeftOf(q1, q2, o2.Point)
	invLengthQ := 1 / q2.Sub(q1).AbsSq()

	return point1LeftOfQ*point2LeftOfQ >= 0 &&
		physics.Sqr(point1LeftOfQ)*invLengthQ > radiusSq &&
		physics.Sqr(point2LeftOfQ)*invLengthQ > radiusSq &&
		t.visibleRecursive(q1, q2, radius, node.left) &&
		t.visibleRecursive(q1, q2, radius, node.right)
}
