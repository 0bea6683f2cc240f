package rvo

import (
	"math"

	"github.com/zeusync/orca/pkg/physics"
)

// maxLeafSize is the largest agent range stored in a single leaf.
const maxLeafSize = 10

type agentTreeNode struct {
	begin, end  int
	left, right int
	minX, maxX  float64
	minY, maxY  float64
}

// agentTree is a balanced k-d tree over agent positions. It is rebuilt
// from scratch before every step and read-only while agents query it.
type agentTree struct {
	agents []*Agent
	nodes  []agentTreeNode
}

func (t *agentTree) build(active []*Agent) {
	t.agents = append(t.agents[:0], active...)

	if cap(t.nodes) < 2*len(t.agents) {
		t.nodes = make([]agentTreeNode, 2*len(t.agents))
	} else {
		t.nodes = t.nodes[:2*len(t.agents)]
	}

	if len(t.agents) != 0 {
		t.buildRecursive(0, len(t.agents), 0)
	}
}

func (t *agentTree) buildRecursive(begin, end, node int) {
	n := &t.nodes[node]
	n.begin = begin
	n.end = end

	first := t.agents[begin].position
	n.minX, n.maxX = first.X, first.X
	n.minY, n.maxY = first.Y, first.Y
	for i := begin + 1; i < end; i++ {
		p := t.agents[i].position
		n.maxX = math.Max(n.maxX, p.X)
		n.minX = math.Min(n.minX, p.X)
		n.maxY = math.Max(n.maxY, p.Y)
		n.minY = math.Min(n.minY, p.Y)
	}

	if end-begin <= maxLeafSize {
		return
	}

	vertical := n.maxX-n.minX > n.maxY-n.minY
	var split float64
	if vertical {
		split = 0.5 * (n.maxX + n.minX)
	} else {
		split = 0.5 * (n.maxY + n.minY)
	}

	coord := func(i int) float64 {
		if vertical {
			return t.agents[i].position.X
		}
		return t.agents[i].position.Y
	}

	left, right := begin, end
	for left < right {
		for left < right && coord(left) < split {
			left++
		}
		for right > left && coord(right-1) >= split {
			right--
		}
		if left < right {
			t.agents[left], t.agents[right-1] = t.agents[right-1], t.agents[left]
			left++
			right--
		}
	}

	leftSize := left - begin
	if leftSize == 0 {
		leftSize++
		left++
	}

	n.left = node + 1
	n.right = node + 2*leftSize

	t.buildRecursive(begin, left, n.left)
	t.buildRecursive(left, end, n.right)
}

func (t *agentTree) computeNeighbors(a *Agent, rangeSq *float64) {
	if len(t.agents) == 0 {
		return
	}
	t.queryRecursive(a, rangeSq, 0)
}

func (t *agentTree) queryRecursive(a *Agent, rangeSq *float64, node int) {
	n := &t.nodes[node]
	if n.end-n.begin <= maxLeafSize {
		for i := n.begin; i < n.end; i++ {
			a.insertAgentNeighbor(t.agents[i], rangeSq)
		}
		return
	}

	distSqLeft := t.nodes[n.left].distSq(a.position)
	distSqRight := t.nodes[n.right].distSq(a.position)

	if distSqLeft < distSqRight {
		if distSqLeft < *rangeSq {
			t.queryRecursive(a, rangeSq, n.left)
			if distSqRight < *rangeSq {
				t.queryRecursive(a, rangeSq, n.right)
			}
		}
		return
	}

	if distSqRight < *rangeSq {
		t.queryRecursive(a, rangeSq, n.right)
		if distSqLeft < *rangeSq {
			t.queryRecursive(a, rangeSq, n.left)
		}
	}
}

// distSq is the squared distance from p to the node's bounding box.
func (n *agentTreeNode) distSq(p physics.Vector2) float64 {
	return physics.Sqr(math.Max(0, n.minX-p.X)) +
		physics.Sqr(math.Max(0, p.X-n.maxX)) +
		physics.Sqr(math.Max(0, n.minY-p.Y)) +
		physics.Sqr(math.Max(0, p.Y-n.maxY))
}
