package hnswgraph

// Close releases the graph and vectors held by this index and returns its
// memory reservation. Operations after Close return ErrClosed. Closing twice
// is a no-op.
func (ix *Index) Close() error {
	if ix == nil {
		return nil
	}

	// wait for a running build so its reservation is accounted
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}

	ix.controller.ReleaseMemory(ix.reserved)
	ix.reserved = 0
	ix.graph, ix.values, ix.vectors = nil, nil, nil
	ix.closed = true

	return nil
}
