package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

func TestEncodeDecodeCursorRoundTrip(t *testing.T) {
	pc := New(5, metrics.Noop())
	pc.AddScan([]byte("a"), []byte("z"))
	pc.AddScan([]byte("m"), []byte("y"))
	idx := pc.AddState(3)
	pc.SetState(idx, 9)

	task := NewTask()
	pc.AddOperation(task)
	go func() { <-task.Stop; close(task.Done) }()
	next := pc.StopAndCheckpoint()

	blob := next.EncodeCursor()
	restored, err := DecodeCursor(blob, 5, metrics.Noop())
	require.NoError(t, err)

	assert.Equal(t, next.GetBounds(0), restored.GetBounds(0))
	assert.Equal(t, next.GetBounds(1), restored.GetBounds(1))
	assert.Equal(t, next.State(idx), restored.State(idx))

	// The restored checkpoint's counters start at zero: a resumed
	// execution's first AddScan/AddState calls reuse these slots in order.
	rid := restored.AddScan([]byte("ignored"), []byte("ignored"))
	assert.Equal(t, 0, rid)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor([]byte("not a cursor"), 5, metrics.Noop())
	assert.Error(t, err)
}
