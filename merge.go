package hnswgraph

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/hnswgraph/hnsw"
	"github.com/hupe1980/hnswgraph/scorer"
)

// MergeFrom appends the vectors of others to ix and builds one graph over
// all of them. The largest graph among ix and others seeds the new graph,
// so only the vectors outside it are inserted. The merged graph always uses
// the M of ix; a graph built with another M does not seed it.
//
// The vectors of others[i] get consecutive ids starting at the returned
// base[i]. Vectors of others that were added after their last Build are
// merged too. The other indexes are not modified. If the build fails, the
// appended vectors stay pending until the next Build.
func (ix *Index) MergeFrom(ctx context.Context, others ...*Index) ([]int, error) {
	for _, o := range others {
		if o == ix {
			return nil, fmt.Errorf("%w: cannot merge an index into itself", ErrIncompatibleIndex)
		}
		if o.dim != ix.dim {
			return nil, fmt.Errorf("%w: dimension %d, expected %d", ErrIncompatibleIndex, o.dim, ix.dim)
		}
		if o.opts.Metric != ix.opts.Metric {
			return nil, fmt.Errorf("%w: metric %v, expected %v", ErrIncompatibleIndex, o.opts.Metric, ix.opts.Metric)
		}
	}

	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	start := time.Now()

	var segments []mergeInput
	bases := make([]int, len(others))

	// snapshot the others before taking our own lock
	type snapshot struct {
		vectors [][]float32
		graph   *hnsw.OnHeapGraph
		values  *scorer.FloatVectors
	}
	snaps := make([]snapshot, len(others))
	for i, o := range others {
		o.mu.RLock()
		snaps[i] = snapshot{
			vectors: o.vectors[:len(o.vectors):len(o.vectors)],
			graph:   o.graph,
			values:  o.values,
		}
		o.mu.RUnlock()
	}

	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return nil, ErrClosed
	}
	if ix.graph != nil && ix.graph.Size() > 0 {
		segments = append(segments, mergeInput{
			seg:    hnsw.Segment{Vectors: ix.values, Graph: ix.graph},
			docMap: hnsw.DocMapFunc(identityDoc),
		})
	}
	for i, s := range snaps {
		base := len(ix.vectors)
		bases[i] = base
		ix.vectors = append(ix.vectors, s.vectors...)
		if s.graph != nil && s.graph.Size() > 0 {
			segments = append(segments, mergeInput{
				seg:    hnsw.Segment{Vectors: s.values, Graph: s.graph},
				docMap: hnsw.DocMapFunc(func(doc int) int { return base + doc }),
			})
		}
	}
	vectors := slices.Clip(ix.vectors)
	ix.mu.Unlock()

	n := len(vectors)
	values, err := scorer.NewFloatVectors(ix.dim, vectors, nil)
	if err != nil {
		return nil, translateError(err)
	}

	_, initialized, err := ix.construct(ctx, values, segments)
	elapsed := time.Since(start)

	ix.opts.Logger.WithCount(n).LogMerge(ctx, len(segments), n, elapsed, err)
	ix.opts.MetricsCollector.RecordMerge(initialized, n, elapsed, err)
	if err != nil {
		return nil, err
	}

	return bases, nil
}
