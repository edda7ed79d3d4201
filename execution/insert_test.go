package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/document"
)

func TestInsertWritesFieldsAndIsReadableAfterCommit(t *testing.T) {
	store, coll := seededCollection(t, nil)
	cx := newTestContext(t, store, coll)

	docs := []NewDoc{{
		PK:     document.Str("new-doc"),
		Fields: map[string][]byte{"name": document.EncodeKeyPart(nil, document.Str("Ada"))},
	}}
	results := drain(t, Insert(cx, docs))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	require.NoError(t, cx.Txn.Commit(context.Background()))

	verifyTxn, err := store.Begin(context.Background())
	require.NoError(t, err)
	raw, ok, err := verifyTxn.Get(context.Background(), coll.CellKey(document.Str("new-doc"), "name"))
	require.NoError(t, err)
	require.True(t, ok)
	v, _, err := document.DecodeKeyPart(raw)
	require.NoError(t, err)
	assert.Equal(t, "Ada", v.Str)
}

func TestInsertGeneratesPrimaryKeyWhenOmitted(t *testing.T) {
	store, coll := seededCollection(t, nil)
	cx := newTestContext(t, store, coll)

	docs := []NewDoc{{Fields: map[string][]byte{"x": document.EncodeKeyPart(nil, document.Int(1))}}}
	results := drain(t, Insert(cx, docs))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.NoError(t, cx.Txn.Commit(context.Background()))

	verifyTxn, err := store.Begin(context.Background())
	require.NoError(t, err)
	it := verifyTxn.GetRange(context.Background(), coll.Prefix, document.StrInc(append([]byte{}, coll.Prefix...)), nil)
	defer it.Close()
	row, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "the generated document must be findable by scanning the collection")

	pk, _, err := coll.PrimaryKeyOf(row.Key)
	require.NoError(t, err)
	assert.Equal(t, document.TypeBytes, pk.Type)
	assert.Len(t, pk.Byt, 16)
}
