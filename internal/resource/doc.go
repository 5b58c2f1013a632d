// Package resource implements the Controller that governs graph construction.
//
// The Controller manages two resource types:
//
//   - Memory: track and limit graph allocations (non-blocking, fail-fast)
//   - Concurrency: limit the number of construction workers running at once
//
// Memory tracking uses a weighted semaphore for hard limits and an atomic
// counter for usage. AcquireMemory never blocks and returns
// ErrMemoryLimitExceeded when the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	    MaxWorkers:       4,
//	})
//
//	if err := rc.AcquireMemory(graphBytes); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(graphBytes)
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// All methods are safe for concurrent use and handle a nil Controller as
// unlimited.
package resource
