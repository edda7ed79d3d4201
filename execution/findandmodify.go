package execution

import (
	"context"

	"github.com/TheBenCollins/fdb-document-layer/checkpoint"
	"github.com/TheBenCollins/fdb-document-layer/config"
	"github.com/TheBenCollins/fdb-document-layer/document"
	docerrors "github.com/TheBenCollins/fdb-document-layer/errors"
	"github.com/TheBenCollins/fdb-document-layer/kv"
	"github.com/TheBenCollins/fdb-document-layer/metrics"
)

// FindAndModify composes a NonIsolatedRO-style search for the FIRST
// matching document (possibly spanning several transactions) with an
// in-transaction update: once a candidate is found, the inner checkpoint
// is stopped unconditionally, discarding its bounds, and the update or
// upsert plus projection run inside the very transaction that found the
// document. If nothing matches and upsert is non-nil, the inserted
// document is committed and projected instead.
func FindAndModify(
	parent context.Context,
	store kv.Store,
	coll document.Collection,
	cfg config.Config,
	reg *metrics.Registry,
	readMeta MetadataReader,
	checkChange MetadataChangeChecker,
	build Builder,
	update UpdateOp,
	upsert UpsertOp,
	project ProjectFunc,
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
		var found document.Handle

		for found == nil {
			cx := &Context{Ctx: parent, Txn: txn, Check: cp, Config: cfg, Metrics: reg, Coll: coll}
			in := build(cx)

			r, ok := <-in
			if ok && r.Err != nil {
				out <- Result{Err: r.Err}
				return
			}
			if ok {
				found = r.Doc
				cp.StopAndCheckpoint() // discard bounds: we are done searching
				break
			}

			next := cp.StopAndCheckpoint()
			if next.AllExhausted() {
				break
			}

			reg.NonIsolatedSegments.Inc()
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

		if found == nil {
			if upsert == nil {
				return
			}
			cx := &Context{Ctx: parent, Txn: txn, Check: cp, Config: cfg, Metrics: reg, Coll: coll}
			doc, err := upsert.Insert(cx)
			if err != nil {
				out <- Result{Err: err}
				return
			}
			found = doc
		} else if update != nil {
			if err := update.Apply(found); err != nil {
				out <- Result{Err: err}
				return
			}
		}

		if err := found.CommitChanges(parent); err != nil {
			out <- Result{Err: err}
			return
		}
		if err := txn.Commit(parent); err != nil {
			if docerrors.IsRetryable(err) {
				// FindAndModify does not retry its own commit: a fresh
				// logical call is required, matching RetryPlan being a
				// distinct wrapper layered on top when that's wanted.
				out <- Result{Err: err}
				return
			}
			out <- Result{Err: docerrors.NewCommitUnknownResultError(err)}
			return
		}

		// found's flow-control permit was taken either by the scan that
		// produced it (the search path) or by upsert.Insert (the upsert
		// path, which must honor the same one-permit-per-document
		// contract as execution.Insert); this is the single terminal
		// consume point for either case.
		cp.Lock().Release()

		if project != nil {
			fields, err := project(found)
			if err != nil {
				out <- Result{Err: err}
				return
			}
			out <- Result{Doc: document.NewMemHandle(found.ScanID(), found.ScanKey(), fields)}
			return
		}
		out <- Result{Doc: found}
	}()

	return out
}
