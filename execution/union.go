package execution

// Union merges two input streams, forwarding whichever side has a ready
// document, treating each side's end-of-stream independently, and never
// deduplicating. Used to combine disjoint index/PK scans chosen by OR
// pushdown.
func Union(cx *Context, left, right Stream) Stream {
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		l, r := left, right
		for l != nil || r != nil {
			select {
			case <-task.Stop:
				return
			case res, ok := <-orNil(l):
				if !ok {
					l = nil
					continue
				}
				if res.Err != nil {
					sendErr(out, res.Err)
					return
				}
				if !sendDoc(out, task.Stop, res.Doc) {
					cx.Check.Lock().Release()
					if cx.Check.BoundsWanted() {
						cx.Check.SetSplitBound(res.Doc.ScanID(), append([]byte{}, res.Doc.ScanKey()...))
					}
					return
				}
			case res, ok := <-orNil(r):
				if !ok {
					r = nil
					continue
				}
				if res.Err != nil {
					sendErr(out, res.Err)
					return
				}
				if !sendDoc(out, task.Stop, res.Doc) {
					cx.Check.Lock().Release()
					if cx.Check.BoundsWanted() {
						cx.Check.SetSplitBound(res.Doc.ScanID(), append([]byte{}, res.Doc.ScanKey()...))
					}
					return
				}
			}
		}
	}()

	return out
}

// orNil returns s unless it is nil, in which case it returns a channel
// that never becomes ready — the standard trick for disabling one arm of
// a select once that side of a fan-in has ended.
func orNil(s Stream) Stream {
	if s == nil {
		return nil
	}
	return s
}
