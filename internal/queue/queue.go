// Package queue provides NeighborQueue, the bounded heap of (node, score)
// pairs used as scratch state by graph search and construction.
package queue

import "math"

// NeighborQueue is a heap of (node, score) pairs packed into one int64 key.
//
// The high 32 bits hold the score as a sortable int, the low 32 bits hold
// the complemented node id. Comparing keys therefore orders by score first
// and, for equal scores, ranks the smaller node id as the better entry in
// both heap directions.
//
// A max heap keeps the best entry on top and is used for candidates that
// must be expanded best first. A min heap keeps the worst entry on top so
// InsertWithOverflow can evict it when the queue is full.
type NeighborQueue struct {
	maxHeap      bool
	maxSize      int
	keys         []int64 // min heap over stored keys
	visitedCount int
	incomplete   bool
}

// New creates a queue. initialSize bounds InsertWithOverflow; Add grows past it.
func New(initialSize int, maxHeap bool) *NeighborQueue {
	if initialSize < 1 {
		initialSize = 1
	}
	return &NeighborQueue{
		maxHeap: maxHeap,
		maxSize: initialSize,
		keys:    make([]int64, 0, initialSize),
	}
}

// Size returns the number of entries.
func (q *NeighborQueue) Size() int { return len(q.keys) }

// MaxSize returns the bound applied by InsertWithOverflow.
func (q *NeighborQueue) MaxSize() int { return q.maxSize }

// MaxHeap reports whether the best entry is on top.
func (q *NeighborQueue) MaxHeap() bool { return q.maxHeap }

// Add pushes a new entry regardless of the size bound.
func (q *NeighborQueue) Add(node int, score float32) {
	q.push(q.stored(Encode(node, score)))
}

// InsertWithOverflow adds the entry if the queue is not full. When full, the
// entry replaces the top only if it ranks above it in heap order. It reports
// whether the entry was added.
func (q *NeighborQueue) InsertWithOverflow(node int, score float32) bool {
	v := q.stored(Encode(node, score))
	if len(q.keys) >= q.maxSize {
		if v < q.keys[0] {
			return false
		}
		q.keys[0] = v
		q.siftDown(0)
		return true
	}
	q.push(v)
	return true
}

// Pop removes the top entry and returns its node id.
func (q *NeighborQueue) Pop() int {
	return DecodeNode(q.stored(q.pop()))
}

// TopNode returns the node id on top.
func (q *NeighborQueue) TopNode() int {
	return DecodeNode(q.stored(q.keys[0]))
}

// TopScore returns the score on top.
func (q *NeighborQueue) TopScore() float32 {
	return DecodeScore(q.stored(q.keys[0]))
}

// Nodes returns the node ids in internal heap order.
func (q *NeighborQueue) Nodes() []int {
	nodes := make([]int, len(q.keys))
	for i, k := range q.keys {
		nodes[i] = DecodeNode(q.stored(k))
	}
	return nodes
}

// Clear removes all entries and resets the bookkeeping flags.
func (q *NeighborQueue) Clear() {
	q.keys = q.keys[:0]
	q.visitedCount = 0
	q.incomplete = false
}

// VisitedCount returns the number of nodes visited while filling the queue.
func (q *NeighborQueue) VisitedCount() int { return q.visitedCount }

// SetVisitedCount records the number of visited nodes.
func (q *NeighborQueue) SetVisitedCount(n int) { q.visitedCount = n }

// MarkIncomplete flags the queue as the result of an early-terminated search.
func (q *NeighborQueue) MarkIncomplete() { q.incomplete = true }

// Incomplete reports whether MarkIncomplete was called since the last Clear.
func (q *NeighborQueue) Incomplete() bool { return q.incomplete }

// stored maps between packed keys and heap keys; it is its own inverse.
func (q *NeighborQueue) stored(k int64) int64 {
	if q.maxHeap {
		return -k
	}
	return k
}

func (q *NeighborQueue) push(v int64) {
	q.keys = append(q.keys, v)
	q.siftUp(len(q.keys) - 1)
}

func (q *NeighborQueue) pop() int64 {
	n := len(q.keys)
	if n == 0 {
		panic("queue: pop from empty NeighborQueue")
	}
	root := q.keys[0]
	q.keys[0] = q.keys[n-1]
	q.keys = q.keys[:n-1]
	if n-1 > 0 {
		q.siftDown(0)
	}
	return root
}

func (q *NeighborQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if q.keys[i] >= q.keys[p] {
			return
		}
		q.keys[i], q.keys[p] = q.keys[p], q.keys[i]
		i = p
	}
}

func (q *NeighborQueue) siftDown(i int) {
	n := len(q.keys)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.keys[r] < q.keys[l] {
			best = r
		}
		if q.keys[best] >= q.keys[i] {
			return
		}
		q.keys[i], q.keys[best] = q.keys[best], q.keys[i]
		i = best
	}
}

// Encode packs a node id and score into a key that sorts by score, then by
// descending node id.
func Encode(node int, score float32) int64 {
	return int64(sortableInt(score))<<32 | int64(uint32(^int32(node)))
}

// DecodeNode extracts the node id from a packed key.
func DecodeNode(k int64) int {
	return int(^int32(uint32(k)))
}

// DecodeScore extracts the score from a packed key.
func DecodeScore(k int64) float32 {
	return fromSortableInt(int32(k >> 32))
}

func sortableInt(f float32) int32 {
	b := int32(math.Float32bits(f))
	return b ^ ((b >> 31) & 0x7fffffff)
}

func fromSortableInt(b int32) float32 {
	return math.Float32frombits(uint32(b ^ ((b >> 31) & 0x7fffffff)))
}
