// Package visited provides the per-search visited node set.
package visited

// Set tracks visited nodes using a bitset and a dirty list for fast reset.
type Set struct {
	bits  []uint64
	dirty []int
}

// New creates a set sized for capacity nodes.
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]int, 0, 128),
	}
}

// GetAndSet marks node as visited and reports whether it already was.
func (v *Set) GetAndSet(node int) bool {
	wordIdx := node >> 6
	bitMask := uint64(1) << (uint(node) & 63)

	if wordIdx >= len(v.bits) {
		v.grow(wordIdx + 1)
	}

	if v.bits[wordIdx]&bitMask != 0 {
		return true
	}
	v.bits[wordIdx] |= bitMask
	v.dirty = append(v.dirty, node)
	return false
}

// Visit marks node as visited.
func (v *Set) Visit(node int) { v.GetAndSet(node) }

// Visited reports whether node has been visited.
func (v *Set) Visited(node int) bool {
	wordIdx := node >> 6
	if wordIdx >= len(v.bits) {
		return false
	}
	return v.bits[wordIdx]&(uint64(1)<<(uint(node)&63)) != 0
}

// Count returns the number of nodes visited since the last Reset.
func (v *Set) Count() int { return len(v.dirty) }

// Reset clears the nodes visited since the last Reset.
func (v *Set) Reset() {
	for _, node := range v.dirty {
		v.bits[node>>6] &^= uint64(1) << (uint(node) & 63)
	}
	v.dirty = v.dirty[:0]
}

// EnsureCapacity ensures the set can hold at least capacity nodes.
func (v *Set) EnsureCapacity(capacity int) {
	words := (capacity + 63) / 64
	if words > len(v.bits) {
		v.grow(words)
	}
}

func (v *Set) grow(newLen int) {
	newCap := len(v.bits) * 2
	if newCap < newLen {
		newCap = newLen
	}
	newBits := make([]uint64, newCap)
	copy(newBits, v.bits)
	v.bits = newBits
}
