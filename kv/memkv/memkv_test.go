package memkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/TheBenCollins/fdb-document-layer/errors"
)

func TestSetGetCommitVisibleToNewTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()

	txn, err := s.Begin(ctx)
	require.NoError(t, err)
	txn.Set([]byte("k"), []byte("v1"))
	require.NoError(t, txn.Commit(ctx))

	txn2, err := s.Begin(ctx)
	require.NoError(t, err)
	v, ok, err := txn2.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestConcurrentWriteConflictIsRetryable(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed(map[string][]byte{"k": []byte("v0")})

	t1, err := s.Begin(ctx)
	require.NoError(t, err)
	t2, err := s.Begin(ctx)
	require.NoError(t, err)

	_, _, err = t1.Get(ctx, []byte("k"))
	require.NoError(t, err)
	_, _, err = t2.Get(ctx, []byte("k"))
	require.NoError(t, err)

	t1.Set([]byte("k"), []byte("from-t1"))
	require.NoError(t, t1.Commit(ctx))

	t2.Set([]byte("k"), []byte("from-t2"))
	err = t2.Commit(ctx)
	require.Error(t, err)
	assert.True(t, docerrors.IsRetryable(err))
}

func TestGetRangeMergesSnapshotAndPendingWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed(map[string][]byte{"a": []byte("1"), "c": []byte("3")})

	txn, err := s.Begin(ctx)
	require.NoError(t, err)
	txn.Set([]byte("b"), []byte("2"))
	txn.Clear([]byte("c"))

	it := txn.GetRange(ctx, []byte("a"), []byte("z"), nil)
	defer it.Close()

	var keys []string
	for {
		row, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, string(row.Key))
	}
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestOnErrorResetsTransactionForRetry(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed(map[string][]byte{"k": []byte("v0")})

	t1, err := s.Begin(ctx)
	require.NoError(t, err)
	_, _, err = t1.Get(ctx, []byte("k"))
	require.NoError(t, err)

	t2, err := s.Begin(ctx)
	require.NoError(t, err)
	t2.Set([]byte("k"), []byte("winner"))
	require.NoError(t, t2.Commit(ctx))

	t1.Set([]byte("k"), []byte("loser"))
	commitErr := t1.Commit(ctx)
	require.Error(t, commitErr)

	require.NoError(t, t1.OnError(ctx, commitErr))
	v, ok, err := t1.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("winner"), v, "OnError refreshes the snapshot")
}
