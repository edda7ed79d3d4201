package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/predicate"
)

func TestFilterKeepsOnlyMatchingDocuments(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"age": document.Int(20)},
		"b": {"age": document.Int(40)},
	})
	cx := newTestContext(t, store, coll)

	pred := predicate.Any(predicate.FieldPath{Name: "age"}, predicate.Range{
		Low: valPtr(document.Int(30)),
	})
	results := drain(t, Filter(cx, TableScan(cx), pred))
	require.Len(t, results, 1)
	raw, _, err := results[0].Doc.Get(context.Background(), []byte("age"))
	require.NoError(t, err)
	v, _, err := document.DecodeKeyPart(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(40), v.Int)
}

func valPtr(v document.Value) *document.Value { return &v }
