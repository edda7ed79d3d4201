// Package kv defines the minimum contract the engine requires of an
// underlying transactional key-value store: an ordered bytewise key
// space, transactional interactive reads with snapshot semantics, and
// commit with retryable/fatal errors. The engine never talks to a
// concrete storage engine directly — every operator is written against
// this interface, and kv/memkv provides a reference implementation used
// by tests and the demo binary.
package kv

import "context"

// Key and Value are raw byte strings. Keys compare bytewise; see
// document.Compare for the ordering used throughout the engine.
type Key = []byte
type Value = []byte

// KeyValue is a single row returned by a range read.
type KeyValue struct {
	Key   Key
	Value Value
}

// Permit throttles a single range read: getRange(lo, hi) yields a lazy
// stream of (key, value) pairs honoring a per-call permit.
// checkpoint.FlowControlLock implements this interface; callers that
// don't need throttling can pass NoPermit.
type Permit interface {
	// Take blocks until a slot is available or ctx is done.
	Take(ctx context.Context) error
	// Release returns a slot taken by Take.
	Release()
}

type noPermit struct{}

func (noPermit) Take(context.Context) error { return nil }
func (noPermit) Release()                   {}

// NoPermit is a Permit that never blocks, for callers outside the
// document-flow pipeline (e.g. metadata reads).
var NoPermit Permit = noPermit{}

// RangeIterator lazily yields the rows of a range read in key order.
type RangeIterator interface {
	// Next advances the iterator and returns the next row. ok is false at
	// end of range. Next takes the iterator's permit once per row before
	// returning it, and callers are expected to have released the
	// previous row's permit (implicitly done by the iterator).
	Next(ctx context.Context) (KeyValue, bool, error)
	// Close releases any resources; safe to call multiple times.
	Close()
}

// Transaction is one interactive, snapshot-isolated transaction against
// the underlying store.
type Transaction interface {
	Get(ctx context.Context, key Key) (Value, bool, error)
	// GetRange returns the half-open range [lo, hi) in key order. permit
	// throttles how many rows may be buffered ahead of the consumer.
	GetRange(ctx context.Context, lo, hi Key, permit Permit) RangeIterator

	Set(key Key, value Value)
	Clear(key Key)
	ClearRange(lo, hi Key)

	// Commit attempts to commit the transaction. The returned error, if
	// any, should be classified with errors.IsRetryable /
	// errors.IsFatal, or be errors.NewCommitUnknownResultError's wrapped
	// cause.
	Commit(ctx context.Context) error

	// OnError implements backoff-then-reset for a retryable error: it
	// blocks for a backoff interval and prepares the transaction object
	// for reuse (calling Cancel and clearing any writes performed so
	// far), returning a non-nil error only if err was not retryable or
	// the retry budget was exhausted.
	OnError(ctx context.Context, err error) error

	// Cancel abandons the transaction without committing. Safe to call
	// after Commit.
	Cancel()
}

// Store opens new transactions against the ordered key space.
type Store interface {
	Begin(ctx context.Context) (Transaction, error)
}
