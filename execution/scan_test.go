package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/checkpoint"
	"github.com/TheBenCollins/fdb-document-layer/config"
	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/kv/memkv"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

func seededCollection(t *testing.T, docs map[string]map[string]document.Value) (*memkv.Store, document.Collection) {
	t.Helper()
	store := memkv.New()
	coll := document.Collection{Prefix: []byte("docs\x00")}

	seed := make(map[string][]byte)
	for pk, fields := range docs {
		for field, v := range fields {
			key := coll.CellKey(document.Str(pk), field)
			seed[string(key)] = document.EncodeKeyPart(nil, v)
		}
	}
	store.Seed(seed)
	return store, coll
}

func newTestContext(t *testing.T, store *memkv.Store, coll document.Collection) *Context {
	t.Helper()
	txn, err := store.Begin(context.Background())
	require.NoError(t, err)
	cp := checkpoint.New(config.Default().FlowControlLockPermits, metrics.Noop())
	return &Context{Ctx: context.Background(), Txn: txn, Check: cp, Config: config.Default(), Metrics: metrics.Noop(), Coll: coll}
}

func drain(t *testing.T, s Stream) []Result {
	t.Helper()
	var out []Result
	for r := range s {
		out = append(out, r)
	}
	return out
}

func TestTableScanEmitsOneHandlePerDocument(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"alice": {"age": document.Int(30)},
		"bob":   {"age": document.Int(40)},
	})
	cx := newTestContext(t, store, coll)

	results := drain(t, TableScan(cx))
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	seen := map[int64]bool{}
	for _, r := range results {
		raw, ok, err := r.Doc.Get(context.Background(), []byte("age"))
		require.NoError(t, err)
		require.True(t, ok)
		v, _, err := document.DecodeKeyPart(raw)
		require.NoError(t, err)
		seen[v.Int] = true
	}
	assert.True(t, seen[30])
	assert.True(t, seen[40])
}

func TestPrimaryKeyLookupPointRead(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"alice": {"age": document.Int(30)},
		"bob":   {"age": document.Int(40)},
	})
	cx := newTestContext(t, store, coll)

	results := drain(t, PrimaryKeyLookup(cx, document.Str("alice"), document.Str("alice")))
	require.Len(t, results, 1)
	raw, ok, err := results[0].Doc.Get(context.Background(), []byte("age"))
	require.NoError(t, err)
	require.True(t, ok)
	v, _, err := document.DecodeKeyPart(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(30), v.Int)
}

func TestTableScanSplitBoundOnCancellation(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"f": document.Int(1)},
		"b": {"f": document.Int(2)},
		"c": {"f": document.Int(3)},
	})
	cx := newTestContext(t, store, coll)

	s := TableScan(cx)
	first, ok := <-s
	require.True(t, ok)
	require.NoError(t, first.Err)

	next := cx.Check.StopAndCheckpoint()
	assert.False(t, next.AllExhausted(), "two documents remain after reading only the first")
}
