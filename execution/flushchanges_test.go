package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/document"
)

var errUpstream = errors.New("upstream failure")

func TestFlushChangesCommitsPendingWritesInOrder(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"age": document.Int(1)},
		"b": {"age": document.Int(2)},
	})
	cx := newTestContext(t, store, coll)

	updated := Update(cx, TableScan(cx), setFieldOp{"age", document.Int(7)}, -1, nil)
	results := drain(t, FlushChanges(cx, updated))
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	require.NoError(t, cx.Txn.Commit(context.Background()))

	verifyTxn, err := store.Begin(context.Background())
	require.NoError(t, err)
	for _, pk := range []string{"a", "b"} {
		raw, ok, err := verifyTxn.Get(context.Background(), coll.CellKey(document.Str(pk), "age"))
		require.NoError(t, err)
		require.True(t, ok)
		v, _, err := document.DecodeKeyPart(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v.Int)
	}
}

func TestFlushChangesForwardsUpstreamError(t *testing.T) {
	store, coll := seededCollection(t, nil)
	cx := newTestContext(t, store, coll)

	failing := make(chan Result, 1)
	failing <- Result{Err: errUpstream}
	close(failing)

	results := drain(t, FlushChanges(cx, failing))
	require.Len(t, results, 1)
	assert.Equal(t, errUpstream, results[0].Err)
}
