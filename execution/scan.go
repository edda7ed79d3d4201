package execution

import (
	"bytes"

	"github.com/TheBenCollins/fdb-document-layer/checkpoint"
	"github.com/TheBenCollins/fdb-document-layer/document"
)

// TableScan reads a collection's full cell range, deduplicating on the
// primary-key prefix, and emits one Handle per document.
func TableScan(cx *Context) Stream {
	begin, end := cx.Coll.Bounds()
	return scanCells(cx, begin, end)
}

// PrimaryKeyLookup executes a point lookup (begin == end, a single key
// read) or a bounded range scan over the primary-key space. It is what
// predicate pushdown rewrites an ANY(_id, p) filter into.
func PrimaryKeyLookup(cx *Context, begin, end document.Value) Stream {
	lo := cx.Coll.DocPrefix(begin)
	var hi []byte
	if bytes.Equal(document.EncodeKey(begin), document.EncodeKey(end)) {
		hi = document.StrInc(append([]byte{}, lo...))
	} else {
		hi = document.StrInc(cx.Coll.DocPrefix(end))
	}
	return scanCells(cx, lo, hi)
}

// PrimaryKeyRawRange scans the raw cell range [begin, end) directly,
// bypassing document.Value encoding. Predicate pushdown uses it when one
// side of a primary-key range predicate is open-ended and the caller has
// already resolved that side to a collection boundary.
func PrimaryKeyRawRange(cx *Context, begin, end []byte) Stream {
	return scanCells(cx, begin, end)
}

// scanCells is the shared TableScan/PrimaryKeyLookup engine: it reads a
// raw cell range and, since consecutive cells of one document share a
// primary-key prefix, emits one TxnHandle per prefix change. A handle's
// individual field reads are served lazily by TxnHandle.Get against the
// live transaction, so this loop never needs to buffer field values.
func scanCells(cx *Context, begin, end []byte) Stream {
	scanID := cx.Check.AddScan(begin, end)
	bounds := cx.Check.GetBounds(scanID)
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		// GetRange's own permit only throttles how far the iterator reads
		// ahead of this loop; it is a fresh single-slot semaphore per
		// call, never the shared document lock, since memkv's iterator
		// takes and releases it entirely within one Next call.
		it := cx.Txn.GetRange(cx.Ctx, bounds.Begin, bounds.End, checkpoint.NewFlowControlLock(1, cx.Metrics))
		defer it.Close()

		var curPrefix []byte
		var curHandle *document.TxnHandle
		var lastEmittedPrefix []byte
		haveDoc := false

		// emit takes one document-lifetime permit from the shared pool
		// right before handing the document downstream, so a document is
		// only ever counted as in flight once it actually leaves this
		// scan. On any failure to deliver it, haveDoc stays true so
		// splitOnCancel resumes at this same document.
		emit := func() bool {
			if !haveDoc {
				return true
			}
			if err := cx.Check.Lock().Take(cx.Ctx); err != nil {
				return false
			}
			if ok := sendDoc(out, task.Stop, curHandle); ok {
				haveDoc = false
				lastEmittedPrefix = curPrefix
				return true
			}
			cx.Check.Lock().Release()
			return false
		}

		splitOnCancel := func() {
			if !cx.Check.BoundsWanted() {
				return
			}
			switch {
			case haveDoc:
				// The in-flight document has not been forwarded: the scan
				// must resume at or before it.
				cx.Check.SetSplitBound(scanID, append([]byte{}, curPrefix...))
			case lastEmittedPrefix != nil:
				cx.Check.SetSplitBound(scanID, document.StrInc(append([]byte{}, lastEmittedPrefix...)))
			default:
				cx.Check.SetSplitBound(scanID, append([]byte{}, bounds.Begin...))
			}
		}

		for {
			select {
			case <-task.Stop:
				splitOnCancel()
				return
			default:
			}

			row, ok, err := it.Next(cx.Ctx)
			if err != nil {
				if !emit() {
					splitOnCancel()
					return
				}
				sendErr(out, err)
				return
			}
			if !ok {
				if !emit() {
					splitOnCancel()
					return
				}
				if cx.Check.BoundsWanted() {
					cx.Check.SetSplitBound(scanID, append([]byte{}, document.Sentinel...))
				}
				return
			}

			_, prefixLen, derr := cx.Coll.PrimaryKeyOf(row.Key)
			if derr != nil {
				if !emit() {
					splitOnCancel()
					return
				}
				sendErr(out, derr)
				return
			}
			prefix := row.Key[:prefixLen]

			if !haveDoc || !bytes.Equal(prefix, curPrefix) {
				if !emit() {
					splitOnCancel()
					return
				}
				curPrefix = append([]byte{}, prefix...)
				curHandle = document.NewTxnHandle(cx.Txn, curPrefix, scanID, append([]byte{}, row.Key...))
				haveDoc = true
			}
		}
	}()

	return out
}

func newStage(cp *checkpoint.PlanCheckpoint) (chan Result, *checkpoint.Task) {
	out := make(chan Result, 1)
	task := checkpoint.NewTask()
	cp.AddOperation(task)
	return out, task
}
