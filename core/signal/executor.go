package signal

import (
	"context"
	"sync/atomic"
)

// ExecutorStats provides observability metrics for a handler executor.
type ExecutorStats struct {
	Queued     int64
	Processing int64
}

// HandlerExecutor decides how the bus invokes handlers. The default runs
// them inline; alternative implementations can queue or parallelize, at
// the cost of weakening Emit's completion guarantee accordingly.
type HandlerExecutor interface {
	// Execute runs one handler with one signal and reports its outcome.
	Execute(ctx context.Context, fn HandlerFunc, sig Signal) error

	// Stats returns a snapshot of the executor's counters.
	Stats() ExecutorStats
}

// sequentialExecutor runs handlers inline in the dispatching goroutine.
// Queued is always zero because nothing ever waits.
type sequentialExecutor struct {
	processing atomic.Int64
}

// NewSequentialExecutor creates the default inline executor.
func NewSequentialExecutor() HandlerExecutor {
	return &sequentialExecutor{}
}

func (e *sequentialExecutor) Execute(ctx context.Context, fn HandlerFunc, sig Signal) error {
	e.processing.Add(1)
	defer e.processing.Add(-1)

	return fn(ctx, sig)
}

func (e *sequentialExecutor) Stats() ExecutorStats {
	return ExecutorStats{
		Processing: e.processing.Load(),
	}
}
