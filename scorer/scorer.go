package scorer

import (
	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/filter"
)

// RandomVectorScorer scores vector ordinals against a bound vector.
type RandomVectorScorer interface {
	// Score returns the similarity of node to the bound vector. Higher is better.
	Score(node int) (float32, error)
	// MaxOrd returns the exclusive upper bound of valid ordinals.
	MaxOrd() int
	// OrdToDoc maps an ordinal to its document id.
	OrdToDoc(ord int) int
	// AcceptOrds translates a document-level filter into an ordinal-level one.
	AcceptOrds(accept filter.Bits) filter.Bits
}

// UpdateableRandomVectorScorer can be rebound to another ordinal before scoring.
type UpdateableRandomVectorScorer interface {
	RandomVectorScorer
	SetScoringOrdinal(node int) error
}

// Supplier creates scorers bound to graph nodes.
type Supplier interface {
	Scorer() (UpdateableRandomVectorScorer, error)
	// Copy returns a supplier that can be used from another goroutine.
	Copy() (Supplier, error)
}

type floatScorer struct {
	values FloatVectorValues
	metric distance.Metric
	target []float32
}

// NewQueryScorer returns a scorer bound to query.
func NewQueryScorer(values FloatVectorValues, metric distance.Metric, query []float32) (RandomVectorScorer, error) {
	if len(query) != values.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: values.Dimension(), Actual: len(query)}
	}
	q := query
	if metric == distance.Cosine {
		// cosine is scale invariant; normalizing once keeps Score cheap
		if n, ok := distance.NormalizeL2Copy(query); ok {
			q = n
		}
	}
	return &floatScorer{values: values, metric: metric, target: q}, nil
}

func (s *floatScorer) Score(node int) (float32, error) {
	v, err := s.values.VectorValue(node)
	if err != nil {
		return 0, err
	}
	return s.metric.Compare(s.target, v), nil
}

func (s *floatScorer) MaxOrd() int { return s.values.Size() }

func (s *floatScorer) OrdToDoc(ord int) int { return s.values.OrdToDoc(ord) }

func (s *floatScorer) AcceptOrds(accept filter.Bits) filter.Bits {
	if accept == nil {
		return nil
	}
	if fv, ok := s.values.(*FloatVectors); ok && fv.docs == nil {
		return accept
	}
	return &docToOrdBits{accept: accept, values: s.values}
}

func (s *floatScorer) SetScoringOrdinal(node int) error {
	v, err := s.values.VectorValue(node)
	if err != nil {
		return err
	}
	s.target = append(s.target[:0], v...)
	return nil
}

// docToOrdBits evaluates a doc-level filter through the ord to doc mapping.
type docToOrdBits struct {
	accept filter.Bits
	values FloatVectorValues
}

func (b *docToOrdBits) Get(ord int) bool { return b.accept.Get(b.values.OrdToDoc(ord)) }

func (b *docToOrdBits) Len() int { return b.values.Size() }

type floatSupplier struct {
	values FloatVectorValues
	metric distance.Metric
}

// NewFloatSupplier creates a Supplier scoring values with metric.
func NewFloatSupplier(values FloatVectorValues, metric distance.Metric) Supplier {
	return &floatSupplier{values: values, metric: metric}
}

func (s *floatSupplier) Scorer() (UpdateableRandomVectorScorer, error) {
	return &floatScorer{
		values: s.values,
		metric: s.metric,
		target: make([]float32, 0, s.values.Dimension()),
	}, nil
}

func (s *floatSupplier) Copy() (Supplier, error) {
	values, err := s.values.Copy()
	if err != nil {
		return nil, err
	}
	return &floatSupplier{values: values, metric: s.metric}, nil
}
