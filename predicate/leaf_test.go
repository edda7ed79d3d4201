package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheBenCollins/fdb-document-layer/document"
)

func TestEqEvaluate(t *testing.T) {
	e := Eq{Value: document.Int(5)}
	ok, err := e.Evaluate(document.Int(5), true)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate(document.Int(6), true)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate(document.Int(5), false)
	assert.NoError(t, err)
	assert.False(t, ok, "a missing field never matches Eq")
}

func TestEqGetRangeIsTightPoint(t *testing.T) {
	e := Eq{Value: document.Str("x")}
	begin, end := e.GetRange()
	assert.Equal(t, document.Str("x"), *begin)
	assert.Equal(t, document.Str("x"), *end)
	assert.True(t, e.RangeIsTight())
}

func TestRangeEvaluateInclusiveBounds(t *testing.T) {
	lo, hi := document.Int(1), document.Int(10)
	r := Range{Low: &lo, High: &hi}

	ok, err := r.Evaluate(document.Int(1), true)
	assert.NoError(t, err)
	assert.True(t, ok, "low bound is inclusive")

	ok, err = r.Evaluate(document.Int(10), true)
	assert.NoError(t, err)
	assert.True(t, ok, "high bound is inclusive")

	ok, err = r.Evaluate(document.Int(11), true)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Evaluate(document.Int(5), false)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRangeOpenSided(t *testing.T) {
	lo := document.Int(5)
	r := Range{Low: &lo, High: nil}
	ok, err := r.Evaluate(document.Int(1_000_000), true)
	assert.NoError(t, err)
	assert.True(t, ok)

	begin, end := r.GetRange()
	assert.Equal(t, &lo, begin)
	assert.Nil(t, end)
}

func TestNotInvertsInnerAndIsNeverTight(t *testing.T) {
	n := Not{Inner: Eq{Value: document.Int(1)}}
	ok, err := n.Evaluate(document.Int(1), true)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = n.Evaluate(document.Int(2), true)
	assert.NoError(t, err)
	assert.True(t, ok)

	begin, end := n.GetRange()
	assert.Nil(t, begin)
	assert.Nil(t, end)
	assert.False(t, n.RangeIsTight())
}
