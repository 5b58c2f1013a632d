// Package filter provides accept-ordinal predicates for filtered graph search.
//
// A filter is consulted only when a scored node is offered to the result
// collector. Nodes that fail the filter are still traversed, so they keep
// serving as stepping stones through the graph.
package filter

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
)

// Bits is a random-access predicate over vector ordinals.
type Bits interface {
	// Get reports whether ordinal i is accepted.
	Get(i int) bool
	// Len returns the number of ordinals covered by the predicate.
	Len() int
}

// Counted is implemented by predicates that know how many ordinals they accept.
// The search dispatcher uses the count to pick the filtered searcher.
type Counted interface {
	Bits
	Cardinality() int
}

// Cardinality returns the accepted count when b exposes it, and false otherwise.
func Cardinality(b Bits) (int, bool) {
	if c, ok := b.(Counted); ok {
		return c.Cardinality(), true
	}
	return 0, false
}

// Roaring adapts a roaring bitmap to Bits.
type Roaring struct {
	rb     *roaring.Bitmap
	length int
}

// NewRoaring wraps rb. length is the number of ordinals the filter covers.
func NewRoaring(rb *roaring.Bitmap, length int) *Roaring {
	return &Roaring{rb: rb, length: length}
}

// RoaringOf builds a roaring-backed filter accepting the given ordinals.
func RoaringOf(length int, ords ...uint32) *Roaring {
	return NewRoaring(roaring.BitmapOf(ords...), length)
}

func (r *Roaring) Get(i int) bool {
	if i < 0 || i >= r.length {
		return false
	}
	return r.rb.Contains(uint32(i))
}

func (r *Roaring) Len() int { return r.length }

// Cardinality counts the accepted ordinals below Len.
func (r *Roaring) Cardinality() int {
	if r.length <= 0 {
		return 0
	}
	if uint64(r.length) > uint64(^uint32(0)) {
		return int(r.rb.GetCardinality())
	}
	return int(r.rb.Rank(uint32(r.length - 1)))
}

// Bitmap exposes the underlying bitmap.
func (r *Roaring) Bitmap() *roaring.Bitmap { return r.rb }

// Fixed is a dense bitset filter.
type Fixed struct {
	bs *bitset.BitSet
}

// NewFixed creates an empty dense filter covering length ordinals.
func NewFixed(length int) *Fixed {
	return &Fixed{bs: bitset.New(uint(length))}
}

// FromBitSet wraps bs without copying it. Later changes to bs are visible
// through the filter.
func FromBitSet(bs *bitset.BitSet) *Fixed {
	return &Fixed{bs: bs}
}

// BitSet exposes the underlying bitset.
func (f *Fixed) BitSet() *bitset.BitSet { return f.bs }

// Set accepts ordinal i.
func (f *Fixed) Set(i int) { f.bs.Set(uint(i)) }

// Clear rejects ordinal i.
func (f *Fixed) Clear(i int) { f.bs.Clear(uint(i)) }

func (f *Fixed) Get(i int) bool {
	if i < 0 {
		return false
	}
	return f.bs.Test(uint(i))
}

func (f *Fixed) Len() int { return int(f.bs.Len()) }

func (f *Fixed) Cardinality() int { return int(f.bs.Count()) }

// Func adapts a predicate function to Bits. It does not expose a cardinality,
// so the search dispatcher always uses the unfiltered searcher for it.
type Func struct {
	Fn     func(i int) bool
	Length int
}

func (f Func) Get(i int) bool { return f.Fn(i) }

func (f Func) Len() int { return f.Length }

// MatchAll accepts every ordinal below its length.
type MatchAll int

func (m MatchAll) Get(i int) bool { return i >= 0 && i < int(m) }

func (m MatchAll) Len() int { return int(m) }

func (m MatchAll) Cardinality() int { return int(m) }
