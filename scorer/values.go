package scorer

import (
	"errors"
	"fmt"
	"math"
)

// NoMoreDocs is returned by DocIndexIterator.NextDoc when the iterator is exhausted.
const NoMoreDocs = math.MaxInt32

var (
	// ErrOrdinalOutOfRange is returned when a vector ordinal is outside [0, size).
	ErrOrdinalOutOfRange = errors.New("scorer: ordinal out of range")

	// ErrUnorderedDocs is returned when document ids are not strictly ascending.
	ErrUnorderedDocs = errors.New("scorer: document ids must be strictly ascending")
)

// ErrDimensionMismatch indicates a vector of the wrong dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// DocIndexIterator walks documents that have a vector in ascending doc id order.
type DocIndexIterator interface {
	// NextDoc advances to the next document and returns its id, or NoMoreDocs.
	NextDoc() int
	// Index returns the vector ordinal of the current document.
	Index() int
}

// FloatVectorValues gives random access to float32 vectors by ordinal.
type FloatVectorValues interface {
	Dimension() int
	Size() int
	// VectorValue returns the vector stored at ord. Callers must not modify it.
	VectorValue(ord int) ([]float32, error)
	// OrdToDoc maps a vector ordinal to its document id.
	OrdToDoc(ord int) int
	Iterator() DocIndexIterator
	// Copy returns an instance that is safe to use from another goroutine.
	Copy() (FloatVectorValues, error)
}

// FloatVectors is an immutable in-memory FloatVectorValues.
type FloatVectors struct {
	dim     int
	vectors [][]float32
	docs    []int
}

// NewFloatVectors creates values over vectors. docs maps each ordinal to a
// document id and must be strictly ascending; nil means docs equal ordinals.
func NewFloatVectors(dim int, vectors [][]float32, docs []int) (*FloatVectors, error) {
	for _, v := range vectors {
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
	}
	if docs != nil {
		if len(docs) != len(vectors) {
			return nil, fmt.Errorf("scorer: %d docs for %d vectors", len(docs), len(vectors))
		}
		for i := 1; i < len(docs); i++ {
			if docs[i] <= docs[i-1] {
				return nil, ErrUnorderedDocs
			}
		}
	}
	return &FloatVectors{dim: dim, vectors: vectors, docs: docs}, nil
}

func (f *FloatVectors) Dimension() int { return f.dim }

func (f *FloatVectors) Size() int { return len(f.vectors) }

func (f *FloatVectors) VectorValue(ord int) ([]float32, error) {
	if ord < 0 || ord >= len(f.vectors) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOrdinalOutOfRange, ord, len(f.vectors))
	}
	return f.vectors[ord], nil
}

func (f *FloatVectors) OrdToDoc(ord int) int {
	if f.docs == nil {
		return ord
	}
	return f.docs[ord]
}

func (f *FloatVectors) Iterator() DocIndexIterator {
	return &ordIterator{values: f, ord: -1}
}

// Copy returns f itself; FloatVectors is never mutated after construction.
func (f *FloatVectors) Copy() (FloatVectorValues, error) { return f, nil }

type ordIterator struct {
	values *FloatVectors
	ord    int
}

func (it *ordIterator) NextDoc() int {
	it.ord++
	if it.ord >= it.values.Size() {
		it.ord = it.values.Size()
		return NoMoreDocs
	}
	return it.values.OrdToDoc(it.ord)
}

func (it *ordIterator) Index() int { return it.ord }
