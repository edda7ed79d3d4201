package execution

import "github.com/TheBenCollins/fdb-document-layer/document"

// ProjectFunc extracts and reshapes the fields a projection expression
// selects; projection rewriting itself is an external collaborator,
// Project here only runs whatever expression it is given.
type ProjectFunc func(doc document.Handle) (map[string]interface{}, error)

// Project applies fn to each input document, preserving order, and emits
// the result wrapped in an in-memory document handle.
func Project(cx *Context, in Stream, fn ProjectFunc) Stream {
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

			fields, err := fn(r.Doc)
			if err != nil {
				sendErr(out, err)
				return
			}
			projected := document.NewMemHandle(r.Doc.ScanID(), r.Doc.ScanKey(), fields)
			if !sendDoc(out, task.Stop, projected) {
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
