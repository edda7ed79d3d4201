package plan

import (
	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/planner"
	"github.com/TheBenCollins/fdb-document-layer/predicate"
)

// pushDown is Node.push_down: an ALL predicate returns source itself for
// every node kind, so NewFilter adds no Filter node for it. Otherwise
// only TableScan accepts a full predicate-catalog push, and only an
// IndexScan already pinned to a single fixed prefix accepts a further
// suffix range refinement. Every other node kind returns ok=false,
// sending NewFilter to its residual Filter fallback.
func pushDown(source Node, pred predicate.Predicate) (Node, bool) {
	if pred.IsAll() {
		return source, true
	}
	switch src := source.(type) {
	case *TableScan:
		pushed, ok := planner.ConstructFilterPlan(src.Schema, pred)
		if !ok {
			return nil, false
		}
		return materialize(source, src.Schema, pushed), true
	case *IndexScan:
		return pushDownSuffix(src, pred)
	default:
		return nil, false
	}
}

// materialize turns a planner.Pushed decision into a concrete Node tree.
// source is threaded through for ScanNone (nothing pushable on that
// branch of an OR: keep the original source, wrapped in a residual
// filter) so a union's unpushed side still scans the whole collection.
func materialize(source Node, schema Schema, p *planner.Pushed) Node {
	switch p.Kind {
	case planner.ScanEmpty:
		return &Empty{}
	case planner.ScanNone:
		return wrapResidual(source, p.Residual)
	case planner.ScanPrimaryKeyLookup:
		return wrapResidual(&PrimaryKeyLookup{Begin: p.Begin, End: p.End}, p.Residual)
	case planner.ScanIndex:
		ix, ok := schema.byName(p.IndexName)
		if !ok {
			return wrapResidual(source, p.Residual)
		}
		lo, hi := indexRangeBounds(ix, p.Begin, p.End)
		node := &IndexScan{Index: ix, Begin: lo, End: hi}
		if fixed, ok := equalityValue(p.Begin, p.End); ok {
			node.FixedValues = []document.Value{fixed}
		}
		return wrapResidual(node, p.Residual)
	case planner.ScanUnion:
		return &Union{
			Left:  materialize(source, schema, p.Left),
			Right: materialize(source, schema, p.Right),
		}
	default:
		return &Empty{}
	}
}

func wrapResidual(n Node, residual predicate.Predicate) Node {
	if residual.IsAll() {
		return n
	}
	return &Filter{Source: n, Pred: residual}
}

func equalityValue(begin, end *document.Value) (document.Value, bool) {
	if begin == nil || end == nil {
		return document.Value{}, false
	}
	if document.Compare(document.EncodeKey(*begin), document.EncodeKey(*end)) != 0 {
		return document.Value{}, false
	}
	return *begin, true
}

func indexRangeBounds(ix document.Index, begin, end *document.Value) (lo, hi []byte) {
	lo, hi = ix.Bounds()
	if begin != nil {
		lo = document.EncodeKeyPart(append([]byte{}, ix.Prefix...), *begin)
	}
	if end != nil {
		hi = document.StrInc(document.EncodeKeyPart(append([]byte{}, ix.Prefix...), *end))
	}
	return lo, hi
}

// pushDownSuffix implements the compound-index half of the IndexScan
// pushdown rule: src already scans a single fixed prefix (its leading
// fields pinned to one value each); if pred is a range on the field that
// immediately follows that prefix, narrow to a tighter IndexScan over the
// combined prefix+suffix range. Anything else (a different field, an
// already-exhausted compound key, a non-ANY predicate) is not pushable.
func pushDownSuffix(src *IndexScan, pred predicate.Predicate) (Node, bool) {
	if !pred.IsAny() {
		return nil, false
	}
	next := len(src.FixedValues)
	if next >= len(src.Index.Fields) {
		return nil, false
	}
	key, ok := pred.Expr().IndexKey()
	if !ok || key.Type != document.TypeString || key.Str != src.Index.Fields[next] {
		return nil, false
	}
	leaf := pred.Leaf()
	begin, end := leaf.GetRange()
	if begin == nil || end == nil {
		return nil, false
	}

	prefixVals := append([]document.Value{}, src.FixedValues...)
	lo := append(append([]byte{}, src.Index.Prefix...), document.EncodeKey(append(append([]document.Value{}, prefixVals...), *begin)...)...)
	hi := document.StrInc(append(append([]byte{}, src.Index.Prefix...), document.EncodeKey(append(append([]document.Value{}, prefixVals...), *end)...)...))

	refined := &IndexScan{Index: src.Index, Begin: lo, End: hi, FixedValues: src.FixedValues}
	residual := predicate.All()
	if !leaf.RangeIsTight() {
		residual = pred
	}
	return wrapResidual(refined, residual), true
}
