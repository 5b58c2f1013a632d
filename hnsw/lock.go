package hnsw

import (
	"encoding/binary"
	"sync"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sys/cpu"
)

// lockStripes is the number of read/write locks shared by all slots.
const lockStripes = 512

// Lock guards NeighborArray slots during concurrent construction.
//
// Slots map to a fixed pool of read/write locks by hashing (level, node).
// Unrelated slots that collide contend on the same lock; in exchange memory
// stays constant no matter how large the graph grows. Each stripe sits on
// its own cache line so neighboring stripes do not false-share.
type Lock struct {
	stripes [lockStripes]stripe
}

type stripe struct {
	sync.RWMutex
	_ cpu.CacheLinePad
}

// NewLock creates a striped lock.
func NewLock() *Lock {
	return &Lock{}
}

// Read acquires the read lock of the (level, node) slot and returns its unlocker.
func (l *Lock) Read(level, node int) sync.Locker {
	mu := l.stripe(level, node)
	mu.RLock()
	return mu.RLocker()
}

// Write acquires the write lock of the (level, node) slot and returns its unlocker.
func (l *Lock) Write(level, node int) sync.Locker {
	mu := l.stripe(level, node)
	mu.Lock()
	return mu
}

func (l *Lock) stripe(level, node int) *sync.RWMutex {
	return &l.stripes[stripeIndex(level, node)].RWMutex
}

func stripeIndex(level, node int) int {
	var key [8]byte
	binary.LittleEndian.PutUint32(key[:4], uint32(level))
	binary.LittleEndian.PutUint32(key[4:], uint32(node))
	h := murmur3.New32()
	_, _ = h.Write(key[:])
	return int(h.Sum32() % lockStripes)
}
