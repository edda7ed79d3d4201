package execution

import "github.com/TheBenCollins/fdb-document-layer/document"

// UpdateOp mutates a document in place through its handle; general
// expression evaluation for update operators is an external
// collaborator — this is the seam it plugs into.
type UpdateOp interface {
	Apply(doc document.Handle) error
}

// UpsertOp inserts a brand-new document when an update's subplan yielded
// nothing. Insert must take one flow-control permit from cx.Check.Lock()
// for the document it returns, exactly as execution.Insert does, since
// its caller (Update, FindAndModify) releases that permit as if it had
// come from an ordinary scan.
type UpsertOp interface {
	Insert(cx *Context) (document.Handle, error)
}

// Update wraps an input scan, applying op to each document and
// forwarding it, honoring limit (a value < 0 means unlimited), and
// firing upsert if the subplan produced zero documents.
//
// Once limit input documents have been consumed, Update stops reading
// further input and returns without draining the remainder; the
// remaining upstream tasks are released only when the enclosing wrapper
// (RetryPlan, NonIsolated, or a direct caller) calls
// checkpoint.StopAndCheckpoint, which is required after Update's stream
// closes early exactly as it is after any other early terminal consumer.
func Update(cx *Context, in Stream, op UpdateOp, limit int64, upsert UpsertOp) Stream {
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		var count int64
		for limit < 0 || count < limit {
			r, ok, cancelled := recvDoc(in, task.Stop)
			if cancelled {
				return
			}
			if !ok {
				break
			}
			if r.Err != nil {
				sendErr(out, r.Err)
				return
			}

			if err := op.Apply(r.Doc); err != nil {
				sendErr(out, err)
				return
			}
			count++
			if !sendDoc(out, task.Stop, r.Doc) {
				cx.Check.Lock().Release()
				if cx.Check.BoundsWanted() {
					cx.Check.SetSplitBound(r.Doc.ScanID(), append([]byte{}, r.Doc.ScanKey()...))
				}
				return
			}
		}

		if count == 0 && upsert != nil {
			doc, err := upsert.Insert(cx)
			if err != nil {
				sendErr(out, err)
				return
			}
			if !sendDoc(out, task.Stop, doc) {
				cx.Check.Lock().Release()
			}
		}
	}()

	return out
}
