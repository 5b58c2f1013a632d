package distance

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/hnswgraph/internal/vecmath"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return vecmath.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return vecmath.SquaredL2(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	return vecmath.NormalizeInPlace(v)
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the similarity function used for vector comparison.
type Metric int

const (
	Euclidean Metric = iota
	DotProduct
	Cosine
	MaximumInnerProduct
)

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case DotProduct:
		return "dot_product"
	case Cosine:
		return "cosine"
	case MaximumInnerProduct:
		return "max_inner_product"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric parses the String form of a Metric. Matching is case-insensitive.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euclidean", "l2":
		return Euclidean, nil
	case "dot_product", "dot":
		return DotProduct, nil
	case "cosine":
		return Cosine, nil
	case "max_inner_product", "mip":
		return MaximumInnerProduct, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", s)
	}
}

// Compare returns the similarity of a and b. Higher is better.
func (m Metric) Compare(a, b []float32) float32 {
	switch m {
	case Euclidean:
		return 1 / (1 + vecmath.SquaredL2(a, b))
	case DotProduct:
		return max((1+vecmath.Dot(a, b))/2, 0)
	case Cosine:
		return max((1+cosine(a, b))/2, 0)
	case MaximumInnerProduct:
		return scaleMaxInnerProduct(vecmath.Dot(a, b))
	default:
		panic(fmt.Sprintf("distance: unsupported metric %d", int(m)))
	}
}

// Func is a similarity function over two vectors.
type Func func(a, b []float32) float32

// Provider returns the similarity function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case Euclidean, DotProduct, Cosine, MaximumInnerProduct:
		return m.Compare, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

func cosine(a, b []float32) float32 {
	na := vecmath.Norm(a)
	nb := vecmath.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return vecmath.Dot(a, b) / (na * nb)
}

func scaleMaxInnerProduct(dot float32) float32 {
	if dot < 0 {
		return 1 / (1 - dot)
	}
	return dot + 1
}
