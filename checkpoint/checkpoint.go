package checkpoint

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/logging"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

// ScanBounds is the half-open key range [Begin, End) a scan is currently
// restricted to.
type ScanBounds struct {
	Begin []byte
	End   []byte
}

type scanEntry struct {
	bounds ScanBounds
	split  []byte // defaults to document.Sentinel: "scan completed"
}

// Task is how an operator registers itself with a PlanCheckpoint. Stop
// must be closed exactly once by the checkpoint to request cancellation;
// the operator's run loop must observe it (alongside its input) and,
// before it returns, close Done. If the checkpoint is cancelling with
// bounds wanted, the operator must call SetSplitBound for every document
// it has received but not forwarded before closing Done — synchronously,
// with no further suspension.
type Task struct {
	Stop chan struct{}
	Done chan struct{}
}

// NewTask allocates a Task ready to be passed to PlanCheckpoint.AddOperation.
func NewTask() *Task {
	return &Task{Stop: make(chan struct{}), Done: make(chan struct{})}
}

// PlanCheckpoint is the per-execution mutable state a running plan
// carries: scan bounds and split keys, resumable operator counters, the
// topologically-ordered operator task list, and the shared flow-control
// lock.
type PlanCheckpoint struct {
	mu          sync.Mutex
	scans       []*scanEntry
	scansAdded  int // AddScan calls made against THIS checkpoint so far
	states      []int64
	statesAdded int
	ops         []*Task

	lock *FlowControlLock

	boundsWanted bool
	metrics      *metrics.Registry
}

// New creates an empty checkpoint: no scans, no operators, a fresh
// flow-control lock with permits slots.
func New(permits int64, reg *metrics.Registry) *PlanCheckpoint {
	if reg == nil {
		reg = metrics.Noop()
	}
	return &PlanCheckpoint{lock: NewFlowControlLock(permits, reg), metrics: reg}
}

// Lock returns the shared flow-control permit pool.
func (pc *PlanCheckpoint) Lock() *FlowControlLock { return pc.lock }

// AddScan registers the next leaf scan in this execution and returns its
// scanId, stable across re-executions provided callers invoke AddScan in
// the same left-to-right order every time. If pc was produced by
// StopAndCheckpoint (or Clone), the slot for this scanId already carries
// its narrowed [split, end) bounds from the prior execution and
// begin/end are ignored; otherwise a fresh slot is created from
// begin/end.
func (pc *PlanCheckpoint) AddScan(begin, end []byte) int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	id := pc.scansAdded
	pc.scansAdded++
	if id < len(pc.scans) {
		return id
	}
	pc.scans = append(pc.scans, &scanEntry{
		bounds: ScanBounds{Begin: append([]byte{}, begin...), End: append([]byte{}, end...)},
		split:  append([]byte{}, document.Sentinel...),
	})
	return id
}

// AddState registers the next resumable operator counter in this
// execution, returning its index. On a checkpoint produced by
// StopAndCheckpoint or Clone the slot already carries the prior
// execution's checkpointed value and initial is ignored.
func (pc *PlanCheckpoint) AddState(initial int64) int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	idx := pc.statesAdded
	pc.statesAdded++
	if idx < len(pc.states) {
		return idx
	}
	pc.states = append(pc.states, initial)
	return idx
}

// State reads a resumable counter's current value.
func (pc *PlanCheckpoint) State(idx int) int64 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.states[idx]
}

// SetState updates a resumable counter's current value.
func (pc *PlanCheckpoint) SetState(idx int, v int64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.states[idx] = v
}

// GetBounds returns scan s's current [begin, end).
func (pc *PlanCheckpoint) GetBounds(s int) ScanBounds {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	e := pc.scans[s]
	return ScanBounds{Begin: append([]byte{}, e.bounds.Begin...), End: append([]byte{}, e.bounds.End...)}
}

// BoundsWanted reports whether a stopAndCheckpoint is currently unwinding
// the plan and split bounds should be computed on cancellation.
func (pc *PlanCheckpoint) BoundsWanted() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.boundsWanted
}

// SetSplitBound records scan s's resumption key. Callers overwrite
// unconditionally; correctness relies on AddOperation/StopAndCheckpoint
// cancelling tasks in topological (input-before-output) order, so the
// most-downstream task with an outstanding document of scan s writes
// last and wins.
func (pc *PlanCheckpoint) SetSplitBound(s int, key []byte) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.scans[s].split = append([]byte{}, key...)
}

// AddOperation registers t as the next task in topological order. Inputs
// must be registered before the outputs that consume them.
func (pc *PlanCheckpoint) AddOperation(t *Task) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.ops = append(pc.ops, t)
}

// StopAndCheckpoint cancels every registered task in topological order,
// lets each compute its outstanding scans' split bounds, then builds the
// successor checkpoint whose scan bounds begin at the computed splits
// and whose resumable states resume from their checkpointed value.
//
// The caller must ensure no plan task is on the current goroutine's call
// stack — StopAndCheckpoint only closes Stop channels and waits on Done
// channels, so calling it directly from the same goroutine that
// constructed the plan (never from inside an operator itself) satisfies
// this.
func (pc *PlanCheckpoint) StopAndCheckpoint() *PlanCheckpoint {
	pc.mu.Lock()
	pc.boundsWanted = true
	ops := append([]*Task{}, pc.ops...)
	pc.mu.Unlock()

	for _, t := range ops {
		close(t.Stop)
		<-t.Done
	}

	pc.mu.Lock()
	pc.boundsWanted = false
	next := &PlanCheckpoint{lock: pc.lock, metrics: pc.metrics}
	next.scans = make([]*scanEntry, len(pc.scans))
	for i, e := range pc.scans {
		next.scans[i] = &scanEntry{
			bounds: ScanBounds{Begin: append([]byte{}, e.split...), End: append([]byte{}, e.bounds.End...)},
			split:  append([]byte{}, document.Sentinel...),
		}
	}
	next.states = append([]int64{}, pc.states...)
	pc.mu.Unlock()

	pc.metrics.Checkpoints.Inc()
	logging.Debugp("stopAndCheckpoint", logging.Pair{Name: "scans", Value: len(next.scans)})
	return next
}

// Clone returns a fresh checkpoint carrying the same scan bounds and
// resumable state values as pc, with its own AddScan/AddState counters
// reset to zero. Unlike StopAndCheckpoint it does not cancel pc's
// operators or touch pc at all beyond reading it — it is for restarting
// the segment pc is about to run (or just ran) from the same starting
// point, used when a transaction commit fails and has to be retried
// against a fresh transaction whose writes must be rebuilt from scratch.
func (pc *PlanCheckpoint) Clone() *PlanCheckpoint {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	clone := &PlanCheckpoint{lock: pc.lock, metrics: pc.metrics}
	clone.scans = make([]*scanEntry, len(pc.scans))
	for i, e := range pc.scans {
		clone.scans[i] = &scanEntry{
			bounds: ScanBounds{Begin: append([]byte{}, e.bounds.Begin...), End: append([]byte{}, e.bounds.End...)},
			split:  append([]byte{}, document.Sentinel...),
		}
	}
	clone.states = append([]int64{}, pc.states...)
	return clone
}

// NumScans returns how many scans have been registered against pc.
func (pc *PlanCheckpoint) NumScans() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.scans)
}

// ExhaustedScanIDs returns the set of scan IDs whose [begin, end) has
// collapsed to empty, as a bitmap. A predicate pushed down through a wide
// OR can widen the plan into hundreds of Union branches, each its own
// scan; representing "which of these are done" as a bitmap keeps the
// membership and cardinality checks NonIsolated's resumption loop needs
// cheap regardless of how wide the plan gets.
func (pc *PlanCheckpoint) ExhaustedScanIDs() *roaring.Bitmap {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	bm := roaring.New()
	for i, e := range pc.scans {
		if document.Compare(e.bounds.Begin, e.bounds.End) >= 0 {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// AllExhausted reports whether every registered scan has fully
// completed, i.e. a NonIsolated wrapper resuming from pc would have
// nothing left to read.
func (pc *PlanCheckpoint) AllExhausted() bool {
	pc.mu.Lock()
	n := uint64(len(pc.scans))
	pc.mu.Unlock()
	return pc.ExhaustedScanIDs().GetCardinality() == n
}
