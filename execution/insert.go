package execution

import "github.com/TheBenCollins/fdb-document-layer/document"

// NewDoc is one document to insert: its primary key plus its field
// values, each already encoded via document.EncodeValues (a single
// element for a scalar field, several for an array-typed one).
type NewDoc struct {
	PK     document.Value
	Fields map[string][]byte
}

// Insert writes docs against cx.Coll's unbound context, taking one
// flow-control permit per document and emitting a handle for it.
func Insert(cx *Context, docs []NewDoc) Stream {
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		for _, d := range docs {
			select {
			case <-task.Stop:
				return
			default:
			}
			if err := cx.Check.Lock().Take(cx.Ctx); err != nil {
				sendErr(out, err)
				return
			}

			pk := d.PK
			if pk.Type == 0 {
				pk = document.NewObjectID()
			}
			prefix := cx.Coll.DocPrefix(pk)
			h := document.NewTxnHandle(cx.Txn, prefix, -1, document.EncodeKeyPart(nil, pk))
			for field, val := range d.Fields {
				h.Set([]byte(field), val)
			}
			if err := h.CommitChanges(cx.Ctx); err != nil {
				cx.Check.Lock().Release()
				sendErr(out, err)
				return
			}

			if !sendDoc(out, task.Stop, h) {
				cx.Check.Lock().Release()
				return
			}
		}
	}()

	return out
}
