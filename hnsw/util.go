package hnsw

import "github.com/bits-and-blooms/bitset"

// Component is a set of nodes on one level reachable from a common root.
// Start is its smallest node id.
type Component struct {
	Start int
	Size  int
}

// IsRooted reports whether every node on every level is reachable from the
// entry node, or from the nodes of the level above.
func IsRooted(g Graph) bool {
	for level := 0; level < g.NumLevels(); level++ {
		if len(Components(g, level, nil, 0)) > 1 {
			return false
		}
	}
	return true
}

// ComponentSizes returns the component sizes of every level, bottom up.
func ComponentSizes(g Graph) [][]int {
	sizes := make([][]int, g.NumLevels())
	for level := range sizes {
		for _, c := range Components(g, level, nil, 0) {
			sizes[level] = append(sizes[level], c.Size)
		}
	}
	return sizes
}

// Components partitions the nodes of level into components.
//
// Components rooted at the entry node (top level) or at the nodes of the level
// above come first, followed by components of nodes those roots cannot reach.
// Nodes with fewer than maxConn neighbors are added to notFullyConnected when
// it is non-nil. The graph must be complete.
func Components(g Graph, level int, notFullyConnected *bitset.BitSet, maxConn int) []Component {
	if g.Size() == 0 {
		return nil
	}
	size := graphSize(g)
	connected := bitset.New(uint(size))

	var roots []int
	if level == g.NumLevels()-1 {
		roots = []int{g.EntryNode()}
	} else {
		roots = g.NodesOnLevel(level + 1)
	}

	var components []Component
	for _, root := range roots {
		if !connected.Test(uint(root)) {
			components = append(components, markRooted(g, level, connected, notFullyConnected, maxConn, root))
		}
	}

	if level == 0 {
		for next, ok := connected.NextClear(0); ok && int(next) < size; next, ok = connected.NextClear(next) {
			components = append(components, markRooted(g, level, connected, notFullyConnected, maxConn, int(next)))
		}
		return components
	}
	for _, node := range g.NodesOnLevel(level) {
		if !connected.Test(uint(node)) {
			components = append(components, markRooted(g, level, connected, notFullyConnected, maxConn, node))
		}
	}
	return components
}

// markRooted walks every node reachable from root that is not yet connected.
func markRooted(g Graph, level int, connected, notFullyConnected *bitset.BitSet, maxConn, root int) Component {
	stack := []int{root}
	c := Component{Start: root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if connected.Test(uint(node)) {
			continue
		}
		connected.Set(uint(node))
		c.Size++
		c.Start = min(c.Start, node)

		g.Seek(level, node)
		friends := 0
		for friend := g.NextNeighbor(); friend != NoMoreNeighbors; friend = g.NextNeighbor() {
			friends++
			stack = append(stack, friend)
		}
		if notFullyConnected != nil && friends < maxConn {
			notFullyConnected.Set(uint(node))
		}
	}
	return c
}
