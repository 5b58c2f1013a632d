package hnsw

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// NoMoreNeighbors is returned by NextNeighbor when the cursor is exhausted.
const NoMoreNeighbors = math.MaxInt32

// Graph is the read view of an HNSW graph.
//
// Seek and NextNeighbor share a single cursor per Graph value, so one Graph
// must not be iterated by several goroutines at once.
type Graph interface {
	// Seek positions the cursor on the neighbors of node at level.
	Seek(level, node int)
	// NextNeighbor returns the next neighbor or NoMoreNeighbors.
	NextNeighbor() int
	// NeighborCount returns the number of neighbors at the cursor.
	NeighborCount() int
	// Size returns the number of nodes.
	Size() int
	// MaxNodeID returns the largest node id, or -1 for an empty graph.
	MaxNodeID() int
	// NumLevels returns the number of levels.
	NumLevels() int
	// MaxConn returns the connection limit M of levels above 0.
	MaxConn() int
	// EntryNode returns the node searches start from, or -1 for an empty graph.
	EntryNode() int
	// NodesOnLevel returns the nodes present at level in ascending order.
	NodesOnLevel(level int) []int
}

// EntryNode is the immutable (node, level) pair searches start from.
type EntryNode struct {
	Node  int
	Level int
}

var emptyEntry = &EntryNode{Node: -1, Level: 0}

// OnHeapGraph is an in-memory Graph built from NeighborArray slots.
//
// A fixed-size graph preallocates its node table and is the only mode that
// supports concurrent AddNode calls. A growable graph doubles its node table
// on demand and must only be mutated by one goroutine.
type OnHeapGraph struct {
	m      int
	nsize  int // neighbors per slot at levels > 0, M+1
	nsize0 int // neighbors per slot at level 0, 2M+1

	graph    [][]*NeighborArray // graph[node][level]
	noGrowth bool

	entry            atomic.Pointer[EntryNode]
	size             atomic.Int64
	maxNodeID        atomic.Int64
	nonZeroLevelSize atomic.Int64

	levelMu        sync.Mutex
	levelToNodes   [][]int
	levelCacheSize int

	cur  *NeighborArray
	upto int
}

// NewOnHeapGraph creates a graph with connection limit m. A non-negative
// numVectors fixes the capacity; a negative one creates a growable graph.
func NewOnHeapGraph(m, numVectors int) *OnHeapGraph {
	g := &OnHeapGraph{
		m:      m,
		nsize:  m + 1,
		nsize0: 2*m + 1,
	}
	if numVectors >= 0 {
		g.graph = make([][]*NeighborArray, numVectors)
		g.noGrowth = true
	} else {
		g.graph = make([][]*NeighborArray, 32)
	}
	g.entry.Store(emptyEntry)
	g.maxNodeID.Store(-1)
	return g
}

// AddNode allocates the neighbor slot of node at level. Nodes must be added
// at their top level first. It panics when a fixed-size graph would grow or
// the level order is violated.
func (g *OnHeapGraph) AddNode(level, node int) {
	if node >= len(g.graph) {
		if g.noGrowth {
			panic(fmt.Sprintf("hnsw: node %d exceeds fixed graph capacity %d", node, len(g.graph)))
		}
		g.graph = append(g.graph, make([][]*NeighborArray, max(node+1, 2*len(g.graph))-len(g.graph))...)
	}
	levels := g.graph[node]
	if levels != nil && len(levels) <= level {
		panic(fmt.Sprintf("hnsw: node %d must be inserted from the top level, got level %d after %d", node, level, len(levels)-1))
	}
	if levels == nil {
		levels = make([]*NeighborArray, level+1)
		g.graph[node] = levels
		g.size.Add(1)
	}
	if level == 0 {
		levels[0] = NewNeighborArray(g.nsize0, true)
	} else {
		levels[level] = NewNeighborArray(g.nsize, true)
		g.nonZeroLevelSize.Add(1)
	}
	for {
		cur := g.maxNodeID.Load()
		if int64(node) <= cur || g.maxNodeID.CompareAndSwap(cur, int64(node)) {
			break
		}
	}
}

// Neighbors returns the slot of node at level. It panics if the slot was never added.
func (g *OnHeapGraph) Neighbors(level, node int) *NeighborArray {
	if node < 0 || node >= len(g.graph) || g.graph[node] == nil || level >= len(g.graph[node]) {
		panic(fmt.Sprintf("hnsw: node %d does not exist at level %d", node, level))
	}
	return g.graph[node][level]
}

// NodeLevel returns the top level of node, or -1 if it is absent.
func (g *OnHeapGraph) NodeLevel(node int) int {
	if node < 0 || node >= len(g.graph) {
		return -1
	}
	return len(g.graph[node]) - 1
}

func (g *OnHeapGraph) Seek(level, node int) {
	g.cur = g.Neighbors(level, node)
	g.upto = -1
}

func (g *OnHeapGraph) NextNeighbor() int {
	g.upto++
	if g.upto < g.cur.size {
		return g.cur.nodes[g.upto]
	}
	return NoMoreNeighbors
}

func (g *OnHeapGraph) NeighborCount() int { return g.cur.size }

func (g *OnHeapGraph) Size() int { return int(g.size.Load()) }

func (g *OnHeapGraph) MaxNodeID() int { return int(g.maxNodeID.Load()) }

func (g *OnHeapGraph) NumLevels() int { return g.entry.Load().Level + 1 }

func (g *OnHeapGraph) MaxConn() int { return g.m }

func (g *OnHeapGraph) EntryNode() int { return g.entry.Load().Node }

// Entry returns the current entry (node, level) pair in one atomic read.
func (g *OnHeapGraph) Entry() EntryNode { return *g.entry.Load() }

// TrySetNewEntryNode makes node the entry node if none exists yet.
func (g *OnHeapGraph) TrySetNewEntryNode(node, level int) bool {
	cur := g.entry.Load()
	if cur.Node != -1 {
		return false
	}
	return g.entry.CompareAndSwap(cur, &EntryNode{Node: node, Level: level})
}

// TryPromoteNewEntryNode replaces the entry node only if its level is still
// expectOldLevel and level is higher.
func (g *OnHeapGraph) TryPromoteNewEntryNode(node, level, expectOldLevel int) bool {
	cur := g.entry.Load()
	if cur.Level != expectOldLevel || cur.Level >= level {
		return false
	}
	return g.entry.CompareAndSwap(cur, &EntryNode{Node: node, Level: level})
}

// NodesOnLevel returns the nodes at level. It panics unless every ordinal in
// [0, MaxNodeID] has been added. Listings for levels above 0 are cached on
// first use.
func (g *OnHeapGraph) NodesOnLevel(level int) []int {
	if size, maxID := g.Size(), g.MaxNodeID(); size != maxID+1 {
		panic(fmt.Sprintf("hnsw: graph build not complete, size=%d maxNodeId=%d", size, maxID))
	}
	if level == 0 {
		nodes := make([]int, g.Size())
		for i := range nodes {
			nodes[i] = i
		}
		return nodes
	}
	g.levelMu.Lock()
	defer g.levelMu.Unlock()
	if g.levelToNodes == nil || len(g.levelToNodes) < g.NumLevels() || g.levelCacheSize != g.Size() {
		g.generateLevelToNodes()
	}
	if level >= len(g.levelToNodes) {
		return nil
	}
	return g.levelToNodes[level]
}

func (g *OnHeapGraph) generateLevelToNodes() {
	numLevels := g.NumLevels()
	g.levelToNodes = make([][]int, numLevels)
	seen, size := 0, g.Size()
	g.levelCacheSize = size
	for node := 0; node < len(g.graph) && seen < size; node++ {
		levels := g.graph[node]
		if levels == nil {
			// merged graphs may leave holes until construction completes
			continue
		}
		seen++
		for l := 1; l < len(levels) && l < numLevels; l++ {
			g.levelToNodes[l] = append(g.levelToNodes[l], node)
		}
	}
}

// RAMBytesUsed estimates the heap footprint of the graph.
func (g *OnHeapGraph) RAMBytesUsed() int64 {
	return EstimateRAMBytes(len(g.graph), g.m, int(g.size.Load()), int(g.nonZeroLevelSize.Load()))
}

// EstimateRAMBytes estimates the footprint of a graph with capacity slots,
// connection limit m, numNodes level 0 slots and upperSlots slots above level 0.
func EstimateRAMBytes(capacity, m, numNodes, upperSlots int) int64 {
	const sliceHeader = 24
	level0 := NewNeighborArray(2*m+1, true).ramBytes()
	upper := NewNeighborArray(m+1, true).ramBytes()
	total := int64(capacity) * sliceHeader
	total += int64(numNodes) * (sliceHeader + 8 + level0)
	total += int64(upperSlots) * (8 + upper)
	return total
}

func (g *OnHeapGraph) String() string {
	e := g.Entry()
	return fmt.Sprintf("OnHeapGraph(size=%d, numLevels=%d, entry=%d)", g.Size(), e.Level+1, e.Node)
}

// Empty is a graph without nodes.
var Empty Graph = emptyGraph{}

type emptyGraph struct{}

func (emptyGraph) Seek(int, int) {}
func (emptyGraph) NextNeighbor() int { return NoMoreNeighbors }
func (emptyGraph) NeighborCount() int { return 0 }
func (emptyGraph) Size() int { return 0 }
func (emptyGraph) MaxNodeID() int { return -1 }
func (emptyGraph) NumLevels() int { return 0 }
func (emptyGraph) MaxConn() int { return 0 }
func (emptyGraph) EntryNode() int { return -1 }
func (emptyGraph) NodesOnLevel(int) []int { return nil }
