package execution

import (
	"sort"

	"github.com/TheBenCollins/fdb-document-layer/checkpoint"
	"github.com/TheBenCollins/fdb-document-layer/document"
)

// SortKeyFunc extracts a document's ordering tuple.
type SortKeyFunc func(doc document.Handle) (document.Value, error)

// SortDirection is ascending or descending for a single sort term.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

type sortEntry struct {
	key document.Value
	doc document.Handle
}

// Sort is blocking: it drains build fully under its own inner checkpoint,
// computes each document's sort key, sorts by key under a bytewise
// comparator over document.EncodeKey (which already orders values by the
// BSON-like type/value ordering document/codec.go implements), then
// emits in order against the outer checkpoint.
//
// build runs against a private inner checkpoint rather than cx.Check, so
// a cancellation arriving mid-drain is atomic: the inner checkpoint is
// stopped and its bounds thrown away without ever touching cx.Check, so
// the enclosing NonIsolated wrapper carries no split for this subplan at
// all and simply reruns Sort's source from its original starting bounds
// on the next segment, rather than resuming a scan whose already
// consumed-but-unsorted rows only ever existed in Sort's discarded
// buffer.
//
// Because sorting requires seeing every input document before emitting
// the first output, a buffered document's flow-control permit belongs to
// the inner checkpoint's own pool for the duration of the drain. Once
// the drain finishes cleanly, those inner permits are released together
// and each document reacquires an outer-pool permit as it is finally
// emitted, so from a downstream consumer's point of view Sort looks like
// any other producer. Callers sorting more documents than
// FlowControlLockPermits permits will deadlock against their own scan;
// sort is memory-bounded, not streaming.
func Sort(cx *Context, build Builder, keyFn SortKeyFunc, dir SortDirection) Stream {
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		innerCP := checkpoint.New(cx.Config.FlowControlLockPermits, cx.Metrics)
		in := build(cx.withCheckpoint(innerCP))

		var buf []sortEntry
		var drainErr error
		cancelled := false

	drain:
		for {
			select {
			case <-task.Stop:
				cancelled = true
				break drain
			case r, ok := <-in:
				if !ok {
					break drain
				}
				if r.Err != nil {
					drainErr = r.Err
					break drain
				}
				k, err := keyFn(r.Doc)
				if err != nil {
					drainErr = err
					break drain
				}
				buf = append(buf, sortEntry{key: k, doc: r.Doc})
			}
		}

		innerCP.StopAndCheckpoint()
		for range buf {
			innerCP.Lock().Release()
		}

		if cancelled {
			return
		}
		if drainErr != nil {
			sendErr(out, drainErr)
			return
		}

		sort.SliceStable(buf, func(i, j int) bool {
			cmp := document.Compare(document.EncodeKey(buf[i].key), document.EncodeKey(buf[j].key))
			if dir == Descending {
				return cmp > 0
			}
			return cmp < 0
		})

		for _, e := range buf {
			if err := cx.Check.Lock().Take(cx.Ctx); err != nil {
				return
			}
			if !sendDoc(out, task.Stop, e.doc) {
				cx.Check.Lock().Release()
				return
			}
		}
	}()

	return out
}
