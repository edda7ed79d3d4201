package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBenCollins/fdb-document-layer/document"
)

func TestSkipDropsLeadingDocuments(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"f": document.Int(1)},
		"b": {"f": document.Int(2)},
		"c": {"f": document.Int(3)},
	})
	cx := newTestContext(t, store, coll)

	results := drain(t, Skip(cx, TableScan(cx), 2))
	require.Len(t, results, 1)
}

func TestSkipZeroForwardsEverything(t *testing.T) {
	store, coll := seededCollection(t, map[string]map[string]document.Value{
		"a": {"f": document.Int(1)},
		"b": {"f": document.Int(2)},
	})
	cx := newTestContext(t, store, coll)

	results := drain(t, Skip(cx, TableScan(cx), 0))
	assert.Len(t, results, 2)
}
