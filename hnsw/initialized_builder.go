package hnsw

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/hnswgraph/scorer"
)

// NewInitializedBuilder creates a sequential builder whose graph starts as a
// copy of initializer remapped through oldToNew. Nodes set in initialized are
// skipped when building.
func NewInitializedBuilder(supplier scorer.Supplier, initializer Graph, oldToNew []int, initialized *bitset.BitSet, maxOrd int, optFns ...func(o *BuilderOptions)) (*Builder, error) {
	opts := DefaultBuilderOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	g := InitGraph(initializer, oldToNew, maxOrd)
	opts.M = g.MaxConn()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return newBuilder(supplier, opts, g, nil, initialized)
}

// InitGraph copies initializer into a fixed-size graph of maxOrd nodes,
// mapping old ordinal o to oldToNew[o]. Nodes and neighbors without a mapping
// (negative or out of range) are dropped. Copied edges get a NaN score that is
// computed the first time the slot must evict a neighbor.
func InitGraph(initializer Graph, oldToNew []int, maxOrd int) *OnHeapGraph {
	g := NewOnHeapGraph(initializer.MaxConn(), maxOrd)
	if ep := remap(oldToNew, initializer.EntryNode()); ep >= 0 {
		// keep the initializer's entry when it survives the mapping
		g.TrySetNewEntryNode(ep, initializer.NumLevels()-1)
	}
	nan := float32(math.NaN())
	for level := initializer.NumLevels() - 1; level >= 0; level-- {
		for _, oldOrd := range initializer.NodesOnLevel(level) {
			newOrd := remap(oldToNew, oldOrd)
			if newOrd < 0 {
				continue
			}
			g.AddNode(level, newOrd)
			g.TrySetNewEntryNode(newOrd, level)
			neighbors := g.Neighbors(level, newOrd)
			initializer.Seek(level, oldOrd)
			for old := initializer.NextNeighbor(); old != NoMoreNeighbors; old = initializer.NextNeighbor() {
				if nbr := remap(oldToNew, old); nbr >= 0 {
					neighbors.AddOutOfOrder(nbr, nan)
				}
			}
		}
	}
	return g
}

func remap(oldToNew []int, old int) int {
	if old < 0 || old >= len(oldToNew) {
		return -1
	}
	return oldToNew[old]
}
