package hnsw

import "errors"

var (
	// ErrFrozen is returned when adding nodes to a builder after its graph was completed.
	ErrFrozen = errors.New("hnsw: builder is frozen and cannot be updated")

	// ErrUnsupported is returned by operations a builder does not provide.
	ErrUnsupported = errors.New("hnsw: operation not supported")

	// ErrInvalidArgument is returned for invalid parameters.
	ErrInvalidArgument = errors.New("hnsw: invalid argument")
)
