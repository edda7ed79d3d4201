// Package checkpoint implements the per-execution state a running plan
// carries: the flow-control permit pool, the scan bounds/split table, and
// the stopAndCheckpoint protocol that cooperatively tears down an
// in-flight plan and computes a resumption point per scan.
package checkpoint

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/TheBenCollins/fdb-document-layer/kv"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

// FlowControlLock is the permit-based semaphore regulating the number of
// documents in flight between a leaf scan and the terminal sink. It is a
// thin wrapper over golang.org/x/sync/semaphore.Weighted rather than a
// hand-rolled counter and condvar.
type FlowControlLock struct {
	sem     *semaphore.Weighted
	metrics *metrics.Registry
}

// NewFlowControlLock creates a lock with permits slots. A permits value
// of 1 gives a single-slot lock, useful for serializing a burst of
// descendant reads the way a directory-listing fan-out needs to.
func NewFlowControlLock(permits int64, reg *metrics.Registry) *FlowControlLock {
	if reg == nil {
		reg = metrics.Noop()
	}
	return &FlowControlLock{sem: semaphore.NewWeighted(permits), metrics: reg}
}

// Take blocks until a permit is available or ctx is cancelled.
func (l *FlowControlLock) Take(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// TryTake acquires a permit without blocking, reporting whether it
// succeeded.
func (l *FlowControlLock) TryTake() bool {
	return l.sem.TryAcquire(1)
}

// Release returns a permit taken by Take or TryTake.
func (l *FlowControlLock) Release() {
	l.sem.Release(1)
}

var _ kv.Permit = (*FlowControlLock)(nil)
