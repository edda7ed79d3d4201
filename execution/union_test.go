package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheBenCollins/fdb-document-layer/document"
)

func TestUnionForwardsBothSidesWithoutDeduping(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"f": document.Int(1)},
		"b": {"f": document.Int(2)},
	})
	cx := newTestContext(t, store, coll)

	left := PrimaryKeyLookup(cx, document.Str("a"), document.Str("a"))
	right := PrimaryKeyLookup(cx, document.Str("b"), document.Str("b"))

	results := drain(t, Union(cx, left, right))
	assert.Len(t, results, 2)
}
