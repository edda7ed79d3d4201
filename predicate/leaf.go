package predicate

import "github.com/TheBenCollins/fdb-document-layer/document"

// Leaf is a predicate on a single scalar value: the sub-predicate applied
// to an ANY variant's extracted expression value. Every Leaf exposes
// GetRange (the tightest INCLUSIVE value range it implies on both ends —
// a nil bound means unbounded on that side) and RangeIsTight (true iff
// that range is exact, needing no residual evaluation). Callers building
// a KV key range from an inclusive end value apply
// document.StrInc(document.EncodeKey(end)) to obtain the exclusive upper
// bound.
type Leaf interface {
	Evaluate(v document.Value, present bool) (bool, error)
	GetRange() (begin, end *document.Value)
	RangeIsTight() bool
}

// Eq matches values equal to Value: a single-point inclusive range.
type Eq struct {
	Value document.Value
}

func (e Eq) Evaluate(v document.Value, present bool) (bool, error) {
	return present && valueEqual(v, e.Value), nil
}

func (e Eq) GetRange() (begin, end *document.Value) {
	b, en := e.Value, e.Value
	return &b, &en
}

func (e Eq) RangeIsTight() bool { return true }

// Range matches values in the inclusive interval [Low, High].
type Range struct {
	Low  *document.Value
	High *document.Value
}

func (r Range) Evaluate(v document.Value, present bool) (bool, error) {
	if !present {
		return false, nil
	}
	if r.Low != nil && compareValues(v, *r.Low) < 0 {
		return false, nil
	}
	if r.High != nil && compareValues(v, *r.High) > 0 {
		return false, nil
	}
	return true, nil
}

func (r Range) GetRange() (begin, end *document.Value) { return r.Low, r.High }
func (r Range) RangeIsTight() bool                      { return true }

// Not wraps another Leaf, negating it. Its range is never tight (a
// complement of a bounded range is generally unbounded on both sides), so
// push-down always falls back to a residual filter for it.
type Not struct {
	Inner Leaf
}

func (n Not) Evaluate(v document.Value, present bool) (bool, error) {
	ok, err := n.Inner.Evaluate(v, present)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (n Not) GetRange() (begin, end *document.Value) { return nil, nil }
func (n Not) RangeIsTight() bool                      { return false }

func valueEqual(a, b document.Value) bool { return compareValues(a, b) == 0 }

func compareValues(a, b document.Value) int {
	return document.Compare(document.EncodeKey(a), document.EncodeKey(b))
}
