package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

func TestAddScanIsStableAcrossReExecution(t *testing.T) {
	pc := New(10, metrics.Noop())
	id0 := pc.AddScan([]byte("a"), []byte("z"))
	id1 := pc.AddScan([]byte("b"), []byte("y"))
	assert.Equal(t, 0, id0)
	assert.Equal(t, 1, id1)

	pc.SetSplitBound(0, []byte("m"))
	pc.SetSplitBound(1, []byte("x"))

	task0, task1 := NewTask(), NewTask()
	pc.AddOperation(task0)
	pc.AddOperation(task1)
	go func() { <-task0.Stop; close(task0.Done) }()
	go func() { <-task1.Stop; close(task1.Done) }()

	next := pc.StopAndCheckpoint()

	// A re-execution against next calling AddScan in the same order must
	// reuse the narrowed slots, not append fresh ones on top.
	nid0 := next.AddScan([]byte("should-be-ignored"), []byte("also-ignored"))
	nid1 := next.AddScan([]byte("ignored"), []byte("ignored"))
	require.Equal(t, 0, nid0)
	require.Equal(t, 1, nid1)

	assert.Equal(t, []byte("m"), next.GetBounds(0).Begin)
	assert.Equal(t, []byte("z"), next.GetBounds(0).End)
	assert.Equal(t, []byte("x"), next.GetBounds(1).Begin)
	assert.Equal(t, []byte("y"), next.GetBounds(1).End)
}

func TestAddStateResumesCheckpointedValue(t *testing.T) {
	pc := New(10, metrics.Noop())
	idx := pc.AddState(0)
	pc.SetState(idx, 7)

	next := pc.StopAndCheckpoint()
	nidx := next.AddState(0) // initial ignored: reuses checkpointed value
	require.Equal(t, idx, nidx)
	assert.Equal(t, int64(7), next.State(nidx))
}

func TestAllExhaustedTracksCollapsedRanges(t *testing.T) {
	pc := New(10, metrics.Noop())
	pc.AddScan([]byte("a"), []byte("z"))
	pc.AddScan([]byte("b"), []byte("y"))

	pc.SetSplitBound(0, []byte("z")) // collapsed: begin == end
	pc.SetSplitBound(1, []byte("m")) // still has [m, y) left

	next := pc.StopAndCheckpoint()
	assert.False(t, next.AllExhausted())
	assert.Equal(t, uint64(1), next.ExhaustedScanIDs().GetCardinality())

	next.SetSplitBound(1, []byte("y"))
	final := next.StopAndCheckpoint()
	assert.True(t, final.AllExhausted())
}

func TestStopAndCheckpointCancelsEveryOperator(t *testing.T) {
	pc := New(10, metrics.Noop())
	task := NewTask()
	pc.AddOperation(task)

	done := make(chan struct{})
	go func() {
		<-task.Stop
		close(task.Done)
		close(done)
	}()

	pc.StopAndCheckpoint()
	<-done // StopAndCheckpoint only returns after Done is closed.
}
