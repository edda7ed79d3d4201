package execution

import (
	"bytes"
	"context"
	"time"

	"github.com/TheBenCollins/fdb-document-layer/checkpoint"
	"github.com/TheBenCollins/fdb-document-layer/config"
	"github.com/TheBenCollins/fdb-document-layer/document"
	docerrors "github.com/TheBenCollins/fdb-document-layer/errors"
	"github.com/TheBenCollins/fdb-document-layer/kv"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

// Builder constructs a subplan's stream against a fresh execution
// Context; NonIsolated/RetryPlan/FindAndModify call it once per segment
// or attempt.
type Builder func(cx *Context) Stream

// MetadataReader reads the collection's current metadata version from
// within txn, along with the collection's up-to-date storage layout.
// Directory/metadata storage itself is an external collaborator; this is
// the seam it plugs into. A returned collection whose Prefix differs from
// the one passed in means the collection's storage directory moved.
type MetadataReader func(ctx context.Context, txn kv.Transaction, coll document.Collection) (version uint64, newColl document.Collection, err error)

// MetadataChangeChecker is a subplan's wasMetadataChangeOkay hook: given
// the refreshed collection context, it decides whether a metadata version
// bump is tolerable mid-execution.
type MetadataChangeChecker func(newColl document.Collection) bool

// refreshMetadata re-reads coll's metadata inside txn and reconciles it
// against the version last observed. A directory move (the collection's
// Prefix changed) is always fatal; a same-directory version bump is
// routed through check, which sees the refreshed collection, and the
// caller's coll/version are updated to match on acceptance.
func refreshMetadata(
	ctx context.Context, txn kv.Transaction, coll document.Collection, version uint64,
	readMeta MetadataReader, check MetadataChangeChecker,
) (document.Collection, uint64, error) {
	v2, newColl, err := readMeta(ctx, txn, coll)
	if err != nil {
		return coll, version, err
	}
	if !bytes.Equal(newColl.Prefix, coll.Prefix) {
		return coll, version, docerrors.NewCollectionMetadataChangedError()
	}
	if v2 != version {
		if check != nil && !check(newColl) {
			return coll, version, docerrors.NewMetadataChangedNonIsolatedError()
		}
		return newColl, v2, nil
	}
	return newColl, version, nil
}

// NonIsolatedRO shatters build's execution across as many short
// transactions as needed, checkpointing after a soft per-segment timeout
// armed on the first document of that segment. It is the terminal
// consumer for flow-control purposes: each document it forwards to the
// caller releases the permit taken by whatever scan produced it.
func NonIsolatedRO(
	parent context.Context,
	store kv.Store,
	coll document.Collection,
	cfg config.Config,
	reg *metrics.Registry,
	readMeta MetadataReader,
	checkChange MetadataChangeChecker,
	build Builder,
) Stream {
	out := make(chan Result, 1)

	go func() {
		defer close(out)

		txn, err := store.Begin(parent)
		if err != nil {
			out <- Result{Err: err}
			return
		}
		version, coll, err := metadataVersionOf(parent, txn, coll, readMeta)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		cp := checkpoint.New(cfg.FlowControlLockPermits, reg)

		for {
			cx := &Context{Ctx: parent, Txn: txn, Check: cp, Config: cfg, Metrics: reg, Coll: coll}
			in := build(cx)

			var timeout <-chan time.Time
			armed := false

		inner:
			for {
				select {
				case r, ok := <-in:
					if !ok {
						break inner
					}
					if r.Err != nil {
						out <- Result{Err: r.Err}
						return
					}
					select {
					case out <- Result{Doc: r.Doc}:
						cp.Lock().Release()
					case <-parent.Done():
						cp.Lock().Release()
						out <- Result{Err: docerrors.NewOperationCancelledError()}
						return
					}
					if !armed {
						armed = true
						timeout = time.After(cfg.NonIsolatedInternalTimeout)
					}
				case <-timeout:
					break inner
				case <-parent.Done():
					out <- Result{Err: docerrors.NewOperationCancelledError()}
					return
				}
			}

			next := cp.StopAndCheckpoint()
			reg.NonIsolatedSegments.Inc()

			if next.AllExhausted() {
				return
			}

			txn, err = store.Begin(parent)
			if err != nil {
				out <- Result{Err: err}
				return
			}
			coll, version, err = refreshMetadata(parent, txn, coll, version, readMeta, checkChange)
			if err != nil {
				out <- Result{Err: err}
				return
			}
			cp = next
		}
	}()

	return out
}

// metadataVersionOf is the initial-read counterpart to refreshMetadata: it
// has no prior version to reconcile against, so a directory move can't yet
// have happened relative to this call.
func metadataVersionOf(ctx context.Context, txn kv.Transaction, coll document.Collection, readMeta MetadataReader) (uint64, document.Collection, error) {
	version, newColl, err := readMeta(ctx, txn, coll)
	if err != nil {
		return 0, coll, err
	}
	return version, newColl, nil
}

// NonIsolatedRW is the read-write variant: each in-flight document is
// committed via CommitChanges and the transaction is committed at every
// checkpoint boundary, releasing that document's flow-control permit only
// once the commit has actually gone through and it is handed to the
// caller. A retryable commit failure discards the failed
// attempt's writes and re-runs the whole segment from its starting
// checkpoint against a fresh transaction, the way txn.OnError's contract
// requires: OnError clears the transaction's staged writes, so simply
// re-issuing Commit against the same txn would commit nothing.
func NonIsolatedRW(
	parent context.Context,
	store kv.Store,
	coll document.Collection,
	cfg config.Config,
	reg *metrics.Registry,
	readMeta MetadataReader,
	checkChange MetadataChangeChecker,
	build Builder,
) Stream {
	out := make(chan Result, 1)

	go func() {
		defer close(out)

		txn, err := store.Begin(parent)
		if err != nil {
			out <- Result{Err: err}
			return
		}
		version, coll, err := metadataVersionOf(parent, txn, coll, readMeta)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		segmentStart := checkpoint.New(cfg.FlowControlLockPermits, reg)

		for {
			// cp always runs on a clone of segmentStart, never segmentStart
			// itself: SetSplitBound/SetState mutate cp in place as build
			// runs, and a retry must restart from the untouched starting
			// point, not from whatever the failed attempt left behind.
			cp := segmentStart.Clone()

			var next *checkpoint.PlanCheckpoint
			var pending []document.Handle
			var commitErr error

			for {
				cx := &Context{Ctx: parent, Txn: txn, Check: cp, Config: cfg, Metrics: reg, Coll: coll}
				in := build(cx)

				var timeout <-chan time.Time
				armed := false
				pending = nil

			inner:
				for {
					select {
					case r, ok := <-in:
						if !ok {
							break inner
						}
						if r.Err != nil {
							out <- Result{Err: r.Err}
							return
						}
						if err := r.Doc.CommitChanges(parent); err != nil {
							out <- Result{Err: err}
							return
						}
						pending = append(pending, r.Doc)
						if !armed {
							armed = true
							timeout = time.After(cfg.NonIsolatedInternalTimeout)
						}
						if cfg.NonIsolatedRWInternalBufferMax > 0 && len(pending) >= cfg.NonIsolatedRWInternalBufferMax {
							break inner
						}
					case <-timeout:
						break inner
					}
				}

				next = cp.StopAndCheckpoint()

				commitErr = txn.Commit(parent)
				if commitErr == nil {
					break
				}
				onErr := txn.OnError(parent, commitErr)
				if onErr != nil {
					out <- Result{Err: onErr}
					return
				}
				reg.RetryAttempts.Inc()
				cp = segmentStart.Clone()
			}

			reg.NonIsolatedSegments.Inc()

			for _, d := range pending {
				out <- Result{Doc: d}
				cp.Lock().Release()
			}

			if next.AllExhausted() {
				return
			}

			txn, err = store.Begin(parent)
			if err != nil {
				out <- Result{Err: err}
				return
			}
			coll, version, err = refreshMetadata(parent, txn, coll, version, readMeta, checkChange)
			if err != nil {
				out <- Result{Err: err}
				return
			}
			segmentStart = next
		}
	}()

	return out
}
