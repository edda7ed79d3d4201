package execution

// Skip drops the first n documents of its input, forwarding the rest,
// releasing a flow-control permit per dropped document. The remaining
// count is a checkpoint-resumable state: on resumption after a
// checkpoint mid-skip, the new checkpoint's slot already holds however
// many are left to drop.
func Skip(cx *Context, in Stream, n int64) Stream {
	stateIdx := cx.Check.AddState(n)
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

			if remaining := cx.Check.State(stateIdx); remaining > 0 {
				cx.Check.SetState(stateIdx, remaining-1)
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
