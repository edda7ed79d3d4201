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

// Retry buffers all of build's output within a single transaction; on a
// retryable error it calls txn.OnError, opens a fresh transaction, and
// re-executes build from scratch; commit_unknown_result and ordinary
// end-of-stream are never retried. On success it commits and emits every
// buffered document downstream, releasing that document's flow-control
// permit as it is delivered — the terminal consume point for whichever
// scan or Insert call originally took it.
func Retry(parent context.Context, store kv.Store, coll document.Collection, cfg config.Config, reg *metrics.Registry, build Builder) Stream {
	out := make(chan Result, 1)

	go func() {
		defer close(out)

		txn, err := store.Begin(parent)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		for {
			cp := checkpoint.New(cfg.FlowControlLockPermits, reg)
			cx := &Context{Ctx: parent, Txn: txn, Check: cp, Config: cfg, Metrics: reg, Coll: coll}
			in := build(cx)

			var buffered []document.Handle
			var runErr error
			for r := range in {
				if r.Err != nil {
					runErr = r.Err
					break
				}
				buffered = append(buffered, r.Doc)
			}

			if runErr != nil && docerrors.IsRetryable(runErr) {
				if onErr := txn.OnError(parent, runErr); onErr != nil {
					out <- Result{Err: onErr}
					return
				}
				reg.RetryAttempts.Inc()
				continue
			}
			if runErr != nil {
				out <- Result{Err: runErr}
				return
			}

			for _, d := range buffered {
				if err := d.CommitChanges(parent); err != nil {
					out <- Result{Err: err}
					return
				}
			}

			if err := txn.Commit(parent); err != nil {
				if docerrors.IsRetryable(err) {
					if onErr := txn.OnError(parent, err); onErr != nil {
						out <- Result{Err: onErr}
						return
					}
					reg.RetryAttempts.Inc()
					continue
				}
				out <- Result{Err: docerrors.NewCommitUnknownResultError(err)}
				return
			}

			for _, d := range buffered {
				out <- Result{Doc: d}
				cp.Lock().Release()
			}
			return
		}
	}()

	return out
}
