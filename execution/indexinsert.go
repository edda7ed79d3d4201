package execution

import (
	"reflect"

	"github.com/TheBenCollins/fdb-document-layer/document"
	docerrors "github.com/TheBenCollins/fdb-document-layer/errors"
	"github.com/TheBenCollins/fdb-document-layer/logging"
)

// IndexDescriptor is the pre-check-relevant shape of an index's metadata:
// its name and the ordered field list its key is built from.
type IndexDescriptor struct {
	Name   string
	Fields []string
}

// IndexInsert creates a new index descriptor, applying the pre-check: an
// index with the same field spec as an existing one is treated as
// index_already_exists; an index with the same name but a different spec
// is index_name_taken. On success it returns the new descriptor as a
// projected document and bumps cx.Coll.MetaVersion (the in-memory
// collection metadata; directory/metadata storage itself is an external
// collaborator).
//
// index_already_exists is, by default, converted to a plain empty stream
// to match a legacy client expectation; set
// cx.Config.IndexAlreadyExistsIsError to surface it as a real error
// instead. Either way cx.Metrics.IndexAlreadyExists is incremented so the
// silent path stays observable.
func IndexInsert(cx *Context, existing []IndexDescriptor, next IndexDescriptor) Stream {
	out, task := newStage(cx.Check)

	go func() {
		defer close(out)
		defer close(task.Done)

		for _, ix := range existing {
			if reflect.DeepEqual(ix.Fields, next.Fields) {
				cx.Metrics.IndexAlreadyExists.Inc()
				logging.Infop("index already exists", logging.Pair{Name: "name", Value: next.Name}, logging.Pair{Name: "existing", Value: ix.Name})
				if cx.Config.IndexAlreadyExistsIsError {
					sendErr(out, docerrors.NewIndexAlreadyExistsError(next.Name))
				}
				return
			}
			if ix.Name == next.Name {
				sendErr(out, docerrors.NewIndexNameTakenError(next.Name))
				return
			}
		}

		cx.Coll.MetaVersion++
		fields := map[string]interface{}{"name": next.Name, "fields": next.Fields}
		h := document.NewMemHandle(-1, document.Sentinel, fields)
		if err := cx.Check.Lock().Take(cx.Ctx); err != nil {
			sendErr(out, err)
			return
		}
		if !sendDoc(out, task.Stop, h) {
			cx.Check.Lock().Release()
		}
	}()

	return out
}
