// Package planner implements the rule-based predicate-pushdown rewriter:
// ConstructFilterPlan rewrites a Filter-over-Scan tree into a more
// selective scan (PrimaryKeyLookup, IndexScan, or a Union of either),
// falling back to a residual Filter for whatever the pushed scan cannot
// express exactly. It is grounded on
// couchbase-query/planner's pushdown passes (sargable-term selection over
// an AND/OR tree, plannerbase/sarg.go) generalized to this engine's
// closed predicate variant set.
package planner

import (
	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/predicate"
)

// ScanKind tags which physical scan a Pushed result names.
type ScanKind int

const (
	ScanNone ScanKind = iota
	ScanPrimaryKeyLookup
	ScanIndex
	ScanUnion
	ScanEmpty
)

// Pushed is the result of pushing a predicate into a source: either a
// leaf scan description, a Union of two Pushed results, or ScanNone if
// nothing could be pushed (caller should wrap with a residual Filter
// instead).
type Pushed struct {
	Kind ScanKind

	// ScanPrimaryKeyLookup / ScanIndex
	Begin, End *document.Value
	IndexName  string
	Residual   predicate.Predicate // ALL if the range was tight

	// ScanUnion
	Left, Right *Pushed
}

// IndexCatalog resolves an expression's index key to a usable simple
// index, if one exists.
type IndexCatalog interface {
	Lookup(indexKey document.Value) (name string, ok bool)
}

// ConstructFilterPlan is construct_filter_plan(cx, source, pred): try to
// push pred all the way to a scan; if that fails, the caller (plan
// construction code) wraps source in a residual Filter(source, pred)
// instead. push_down itself is exhaustive over the predicate's closed
// variant set below.
func ConstructFilterPlan(idx IndexCatalog, pred predicate.Predicate) (*Pushed, bool) {
	return pushDown(idx, pred)
}

func pushDown(idx IndexCatalog, pred predicate.Predicate) (*Pushed, bool) {
	switch {
	case pred.IsAll():
		return nil, false // push_down(p, ALL) = p: no rewrite needed, keep the scan as-is.
	case pred.IsNone():
		return &Pushed{Kind: ScanEmpty}, true
	case pred.IsAny():
		return pushAny(idx, pred)
	case pred.IsOr():
		return pushOr(idx, pred)
	case pred.IsAnd():
		return pushAnd(idx, pred)
	default:
		return nil, false
	}
}

func pushAny(idx IndexCatalog, pred predicate.Predicate) (*Pushed, bool) {
	expr := pred.Expr()
	leaf := pred.Leaf()
	begin, end := leaf.GetRange()

	if expr.IsPrimaryKey() {
		residual := predicate.All()
		if !leaf.RangeIsTight() {
			residual = pred
		}
		return &Pushed{Kind: ScanPrimaryKeyLookup, Begin: begin, End: end, Residual: residual}, true
	}

	if key, ok := expr.IndexKey(); ok {
		if name, found := idx.Lookup(key); found {
			residual := predicate.All()
			if !leaf.RangeIsTight() {
				residual = pred
			}
			return &Pushed{Kind: ScanIndex, IndexName: name, Begin: begin, End: end, Residual: residual}, true
		}
	}

	return nil, false
}

// pushOr implements the OR pushdown rule: pop the last term t; try to
// push it; on success recursively push AND(OR(rest), NOT(t)) to keep the
// two sides disjoint, and combine with Union. If pushing t fails,
// abandon the whole OR (the source is not rewritten at all — no partial
// union of only some terms).
func pushOr(idx IndexCatalog, pred predicate.Predicate) (*Pushed, bool) {
	terms := pred.Children()
	if len(terms) == 0 {
		return nil, false
	}
	last := terms[len(terms)-1]
	rest := terms[:len(terms)-1]

	leftPushed, ok := pushDown(idx, last)
	if !ok {
		return nil, false
	}

	var restPred predicate.Predicate
	if len(rest) == 0 {
		restPred = predicate.None()
	} else {
		restPred = predicate.Or(rest...)
	}
	disjointRest := predicate.And(restPred, predicate.Negate(last))

	rightPushed, ok := pushDown(idx, disjointRest)
	if !ok {
		// The right side has no pushable scan of its own; fall back to a
		// residual filter for it, wrapped over the same source shape as
		// the left push (the caller applies this to the original source).
		rightPushed = &Pushed{Kind: ScanNone, Residual: disjointRest}
	}

	return &Pushed{Kind: ScanUnion, Left: leftPushed, Right: rightPushed}, true
}

// pushAnd implements the AND pushdown rule: push only the FIRST pushable
// term, wrapping the rest (all other terms, in original order, pushable
// or not) as a residual filter. This
// intentionally does not race multiple pushable terms against each other
// — the source comment "SOMEDAY: race" documents that as unimplemented
// future work, and this replicates the original's first-match behavior
// exactly rather than "improving" it.
func pushAnd(idx IndexCatalog, pred predicate.Predicate) (*Pushed, bool) {
	terms := pred.Children()
	for i, t := range terms {
		pushed, ok := pushDown(idx, t)
		if !ok {
			continue
		}
		rest := make([]predicate.Predicate, 0, len(terms)-1)
		for j, other := range terms {
			if j != i {
				rest = append(rest, other)
			}
		}
		residual := pushed.Residual
		if len(rest) > 0 {
			residual = predicate.And(append([]predicate.Predicate{residual}, rest...)...)
		}
		pushed.Residual = residual
		return pushed, true
	}
	return nil, false
}
