// Package memkv is a reference, in-process implementation of the kv.Store
// contract, backed by an ordered B-tree (github.com/google/btree, as used
// by talent-plan-tinykv for its region index) with optimistic concurrency
// control. It exists for tests and for the demo binary in
// cmd/docenginedemo, and is not meant to be durable or performant.
package memkv

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/btree"

	"github.com/TheBenCollins/fdb-document-layer/document"
	docerrors "github.com/TheBenCollins/fdb-document-layer/errors"
	"github.com/TheBenCollins/fdb-document-layer/kv"
)

type row struct {
	key   []byte
	value []byte
}

func rowLess(a, b row) bool { return document.Less(a.key, b.key) }

// Store is a single ordered keyspace shared by every transaction opened
// against it.
type Store struct {
	mu      sync.Mutex
	tree    *btree.BTreeG[row]
	version uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{tree: btree.NewG(32, rowLess)}
}

// Seed inserts kvs directly, bypassing transactions; useful for test
// fixtures.
func (s *Store) Seed(kvs map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kvs {
		s.tree.ReplaceOrInsert(row{key: []byte(k), value: v})
		s.version++
	}
}

func (s *Store) Begin(ctx context.Context) (kv.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &txn{
		store:    s,
		snapshot: s.tree.Clone(),
		base:     s.version,
		reads:    make(map[string]readRecord),
		writes:   make(map[string]writeRecord),
		backoff:  freshBackoff(),
	}, nil
}

func freshBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 0
	b.MaxInterval = 0
	b.MaxElapsedTime = 0
	return b
}

type readRecord struct {
	value []byte
	found bool
}

type writeRecord struct {
	value []byte
	clear bool
}

type txn struct {
	mu       sync.Mutex
	store    *Store
	snapshot *btree.BTreeG[row]
	base     uint64
	reads    map[string]readRecord
	writes   map[string]writeRecord
	backoff  *backoff.ExponentialBackOff
	done     bool
}

func (t *txn) lookup(key []byte) ([]byte, bool) {
	if w, ok := t.writes[string(key)]; ok {
		if w.clear {
			return nil, false
		}
		return w.value, true
	}
	r, ok := t.snapshot.Get(row{key: key})
	if !ok {
		return nil, false
	}
	return r.value, true
}

func (t *txn) Get(ctx context.Context, key kv.Key) (kv.Value, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.lookup(key)
	if _, tracked := t.writes[string(key)]; !tracked {
		t.reads[string(key)] = readRecord{value: v, found: ok}
	}
	return v, ok, nil
}

type iterator struct {
	rows   []row
	idx    int
	permit kv.Permit
}

func (it *iterator) Next(ctx context.Context) (kv.KeyValue, bool, error) {
	if it.idx >= len(it.rows) {
		return kv.KeyValue{}, false, nil
	}
	if err := it.permit.Take(ctx); err != nil {
		return kv.KeyValue{}, false, err
	}
	defer it.permit.Release()
	r := it.rows[it.idx]
	it.idx++
	return kv.KeyValue{Key: r.key, Value: r.value}, true, nil
}

func (it *iterator) Close() {}

func (t *txn) GetRange(ctx context.Context, lo, hi kv.Key, permit kv.Permit) kv.RangeIterator {
	if permit == nil {
		permit = kv.NoPermit
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	merged := make(map[string]row)
	t.snapshot.AscendRange(row{key: lo}, row{key: hi}, func(r row) bool {
		merged[string(r.key)] = r
		return true
	})
	for k, w := range t.writes {
		if document.Compare([]byte(k), lo) >= 0 && document.Compare([]byte(k), hi) < 0 {
			if w.clear {
				delete(merged, k)
			} else {
				merged[k] = row{key: []byte(k), value: w.value}
			}
		}
	}
	rows := make([]row, 0, len(merged))
	for _, r := range merged {
		rows = append(rows, r)
	}
	sortRows(rows)

	// A ranged read observes every key in [lo, hi) for conflict purposes:
	// record it so a concurrent insert/delete in that range at commit
	// time is detected as a conflict.
	t.reads[rangeReadKey(lo, hi)] = readRecord{}

	return &iterator{rows: rows, permit: permit}
}

func sortRows(rows []row) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rowLess(rows[j], rows[j-1]); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func rangeReadKey(lo, hi []byte) string {
	return "\x00range\x00" + string(lo) + "\x00" + string(hi)
}

func (t *txn) Set(key kv.Key, value kv.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := append([]byte{}, value...)
	t.writes[string(key)] = writeRecord{value: cp}
}

func (t *txn) Clear(key kv.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes[string(key)] = writeRecord{clear: true}
}

func (t *txn) ClearRange(lo, hi kv.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.AscendRange(row{key: lo}, row{key: hi}, func(r row) bool {
		t.writes[string(r.key)] = writeRecord{clear: true}
		return true
	})
	for k := range t.writes {
		if document.Compare([]byte(k), lo) >= 0 && document.Compare([]byte(k), hi) < 0 {
			t.writes[k] = writeRecord{clear: true}
		}
	}
}

// Commit validates every tracked read against the live tree and, if
// nothing conflicts, applies the write set atomically.
func (t *txn) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return docerrors.NewInternalError("commit called on a finished transaction")
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for k, rec := range t.reads {
		if len(k) > 7 && k[:7] == "\x00range\x00" {
			// Range reads are validated against the version counter
			// only: any commit since this txn began invalidates them
			// conservatively. Real stores use finer-grained range
			// conflict sets; this is a reference implementation.
			if t.store.version != t.base {
				return docerrors.NewRetryableError(nil)
			}
			continue
		}
		cur, ok := t.store.tree.Get(row{key: []byte(k)})
		curVal, curOk := cur.value, ok
		if curOk != rec.found || (curOk && string(curVal) != string(rec.value)) {
			return docerrors.NewRetryableError(nil)
		}
	}

	for k, w := range t.writes {
		if w.clear {
			t.store.tree.Delete(row{key: []byte(k)})
		} else {
			t.store.tree.ReplaceOrInsert(row{key: []byte(k), value: w.value})
		}
	}
	t.store.version++
	t.done = true
	return nil
}

func (t *txn) OnError(ctx context.Context, err error) error {
	if !docerrors.IsRetryable(err) {
		return err
	}
	d := t.backoff.NextBackOff()
	if d == backoff.Stop {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.mu.Lock()
	t.snapshot = t.store.tree.Clone()
	t.base = t.store.version
	t.store.mu.Unlock()
	t.reads = make(map[string]readRecord)
	t.writes = make(map[string]writeRecord)
	t.done = false
	return nil
}

func (t *txn) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
}
