package execution

// FlushChanges awaits doc.CommitChanges() for each input document,
// preserving order, then forwards it. It exists because the update /
// index-write pipeline defers KV writes onto the document handle; some
// downstream consumers (index maintenance, findAndModify's projection)
// need those writes materialized into the transaction before they read
// the document back.
func FlushChanges(cx *Context, in Stream) Stream {
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

			if err := r.Doc.CommitChanges(cx.Ctx); err != nil {
				sendErr(out, err)
				return
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
