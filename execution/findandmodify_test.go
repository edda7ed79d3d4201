package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/config"
	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

func TestFindAndModifyUpdatesFirstMatch(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"age": document.Int(1)},
		"b": {"age": document.Int(2)},
	})
	build := func(cx *Context) Stream { return TableScan(cx) }

	s := FindAndModify(
		context.Background(), store, coll, config.Default(), metrics.Noop(),
		fixedVersionReader(1), nil, build,
		setFieldOp{"age", document.Int(100)}, nil, nil,
	)
	var results []Result
	for r := range s {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	verifyTxn, err := store.Begin(context.Background())
	require.NoError(t, err)

	pk, _, err := coll.PrimaryKeyOf(results[0].Doc.ScanKey())
	require.NoError(t, err)
	raw, ok, err := verifyTxn.Get(context.Background(), coll.CellKey(pk, "age"))
	require.NoError(t, err)
	require.True(t, ok)
	v, _, err := document.DecodeKeyPart(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v.Int)
}

func TestFindAndModifyUpsertsWhenNothingMatches(t *testing.T) {
	store, coll := seededCollection(t, nil)
	build := func(cx *Context) Stream { return TableScan(cx) }

	s := FindAndModify(
		context.Background(), store, coll, config.Default(), metrics.Noop(),
		fixedVersionReader(1), nil, build,
		nil, stubUpsert{document.Str("fresh")}, nil,
	)
	var results []Result
	for r := range s {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	pk, _, err := document.DecodeKeyPart(results[0].Doc.ScanKey())
	require.NoError(t, err)
	assert.Equal(t, "fresh", pk.Str)
}

func TestFindAndModifyReturnsNothingWhenNoMatchAndNoUpsert(t *testing.T) {
	store, coll := seededCollection(t, nil)
	build := func(cx *Context) Stream { return TableScan(cx) }

	s := FindAndModify(
		context.Background(), store, coll, config.Default(), metrics.Noop(),
		fixedVersionReader(1), nil, build,
		nil, nil, nil,
	)
	var results []Result
	for r := range s {
		results = append(results, r)
	}
	assert.Empty(t, results)
}
