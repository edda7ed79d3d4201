package execution

import (
	"github.com/TheBenCollins/fdb-document-layer/predicate"
)

// Filter evaluates pred against each input document, preserving order,
// forwarding matches and releasing a flow-control permit for drops.
// Predicate evaluation here is synchronous, so a single in-flight
// document per step already satisfies input-always-awaited with no
// extra buffering.
func Filter(cx *Context, in Stream, pred predicate.Predicate) Stream {
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		for {
			r, ok, cancelled := recvDoc(in, task.Stop)
			if cancelled {
				return
			}
			if !ok {
				return
			}
			if r.Err != nil {
				sendErr(out, r.Err)
				return
			}

			match, err := pred.Evaluate(cx.Ctx, r.Doc)
			if err != nil {
				sendErr(out, err)
				return
			}
			if !match {
				cx.Check.Lock().Release()
				continue
			}
			if !sendDoc(out, task.Stop, r.Doc) {
				cx.Check.Lock().Release()
				if cx.Check.BoundsWanted() {
					cx.Check.SetSplitBound(r.Doc.ScanID(), append([]byte{}, r.Doc.ScanKey()...))
				}
				return
			}
		}
	}()

	return out
}
