package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/config"
	docerrors "github.com/TheBenCollins/fdb-document-layer/errors"
	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

func TestRetrySucceedsAndCommitsBufferedDocuments(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"age": document.Int(1)},
		"b": {"age": document.Int(2)},
	})

	build := func(cx *Context) Stream { return TableScan(cx) }
	results := drain(t, Retry(context.Background(), store, coll, config.Default(), metrics.Noop(), build))
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	verifyTxn, err := store.Begin(context.Background())
	require.NoError(t, err)
	_, ok, err := verifyTxn.Get(context.Background(), coll.CellKey(document.Str("a"), "age"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRetryReRunsBuildOnRetryableError(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"age": document.Int(1)},
	})

	attempts := 0
	build := func(cx *Context) Stream {
		attempts++
		if attempts == 1 {
			out := make(chan Result, 1)
			out <- Result{Err: docerrors.NewRetryableError(nil)}
			close(out)
			return out
		}
		return TableScan(cx)
	}

	results := drain(t, Retry(context.Background(), store, coll, config.Default(), metrics.Noop(), build))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 2, attempts)
}

func TestRetryPropagatesNonRetryableBuildError(t *testing.T) {
	store, coll := seededCollection(t, nil)

	attempts := 0
	build := func(cx *Context) Stream {
		attempts++
		out := make(chan Result, 1)
		out <- Result{Err: docerrors.NewInvalidPlanError("bad plan")}
		close(out)
		return out
	}

	results := drain(t, Retry(context.Background(), store, coll, config.Default(), metrics.Noop(), build))
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Equal(t, 1, attempts, "a non-retryable build error must not trigger re-execution")
}
