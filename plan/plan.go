// Package plan holds the static, closed set of plan-tree node
// descriptors: TableScan, PrimaryKeyLookup, IndexScan, Filter, Project,
// Sort, Update, Insert, IndexInsert, Union, Skip, FlushChanges, and
// Empty. The NonIsolated, Retry, and FindAndModify wrappers are not plan
// nodes; they are functions in ../execution. A Node's Execute
// method follows one operator contract throughout: build children
// synchronously, in a fixed order, then wire the runtime pipeline from
// ../execution.
//
// Operators and predicates are a closed family, not an open interface
// hierarchy: every Node implementation lives in this package so pushdown
// rewriting in pushdown.go can type-switch over the full set exhaustively.
package plan

import (
	"github.com/TheBenCollins/fdb-document-layer/document"
	"github.com/TheBenCollins/fdb-document-layer/execution"
	"github.com/TheBenCollins/fdb-document-layer/predicate"
)

// Node is any plan tree operator.
type Node interface {
	Execute(cx *execution.Context) execution.Stream
}

// Schema resolves an index by its indexed path, for predicate pushdown
// (planner.IndexCatalog), and by name, for materializing a pushed index
// scan.
type Schema struct {
	Indexes []document.Index
}

func (s Schema) Lookup(indexKey document.Value) (string, bool) {
	if indexKey.Type != document.TypeString {
		return "", false
	}
	for _, ix := range s.Indexes {
		if len(ix.Fields) >= 1 && ix.Fields[0] == indexKey.Str {
			return ix.Name, true
		}
	}
	return "", false
}

func (s Schema) byName(name string) (document.Index, bool) {
	for _, ix := range s.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return document.Index{}, false
}

// TableScan is the leaf full-collection scan.
type TableScan struct{ Schema Schema }

func (n *TableScan) Execute(cx *execution.Context) execution.Stream { return execution.TableScan(cx) }

// PrimaryKeyLookup is a point lookup (Begin == End) or bounded range scan
// over the primary-key space. A nil bound is open-ended, resolved
// against the collection's own boundary.
type PrimaryKeyLookup struct{ Begin, End *document.Value }

func (n *PrimaryKeyLookup) Execute(cx *execution.Context) execution.Stream {
	if n.Begin != nil && n.End != nil {
		return execution.PrimaryKeyLookup(cx, *n.Begin, *n.End)
	}
	lo, hi := cx.Coll.Bounds()
	if n.Begin != nil {
		lo = cx.Coll.DocPrefix(*n.Begin)
	}
	if n.End != nil {
		hi = document.StrInc(cx.Coll.DocPrefix(*n.End))
	}
	return execution.PrimaryKeyRawRange(cx, lo, hi)
}

// IndexScan reads ix's key range [Begin, End) and deduplicates
// single-field index entries per document. FixedValues holds
// ix.Fields' leading values already pinned to a single point by an
// earlier equality push (a "single fixed prefix"), enabling a further
// suffix refinement.
type IndexScan struct {
	Index       document.Index
	Begin, End  []byte
	FixedValues []document.Value
}

func (n *IndexScan) Execute(cx *execution.Context) execution.Stream {
	s := execution.IndexScan(cx, n.Index, n.Begin, n.End)
	if len(n.Index.Fields) == 1 {
		return execution.DeduplicateIndexStream(cx, s, n.Index.Fields[0], n.End)
	}
	return s
}

// Union merges Left and Right's outputs without deduplicating; used to
// combine disjoint scans chosen by OR pushdown.
type Union struct{ Left, Right Node }

func (n *Union) Execute(cx *execution.Context) execution.Stream {
	return execution.Union(cx, n.Left.Execute(cx), n.Right.Execute(cx))
}

// Empty always produces zero documents, the rewrite target for a
// predicate pushdown determines can never match.
type Empty struct{}

func (n *Empty) Execute(cx *execution.Context) execution.Stream {
	ch := make(chan execution.Result)
	close(ch)
	return ch
}

// Filter evaluates Pred against Source's output. Its constructor,
// NewFilter, is construct_filter_plan: it always tries pushdown first,
// only falling back to a runtime Filter node when nothing could be
// pushed.
type Filter struct {
	Source Node
	Pred   predicate.Predicate
}

func (n *Filter) Execute(cx *execution.Context) execution.Stream {
	return execution.Filter(cx, n.Source.Execute(cx), n.Pred)
}

// NewFilter is construct_filter_plan(cx, source, pred):
// source.push_down(cx, pred).unwrap_or(Filter{source, pred}).
func NewFilter(source Node, pred predicate.Predicate) Node {
	if rewritten, ok := pushDown(source, pred); ok {
		return rewritten
	}
	return &Filter{Source: source, Pred: pred}
}

// Project applies Fn to Source's output, wrapping results in an
// in-memory handle, preserving order.
type Project struct {
	Source Node
	Fn     execution.ProjectFunc
}

func (n *Project) Execute(cx *execution.Context) execution.Stream {
	return execution.Project(cx, n.Source.Execute(cx), n.Fn)
}

// Sort drains Source fully, orders by KeyFn under Direction, then emits.
type Sort struct {
	Source    Node
	KeyFn     execution.SortKeyFunc
	Direction execution.SortDirection
}

func (n *Sort) Execute(cx *execution.Context) execution.Stream {
	build := func(icx *execution.Context) execution.Stream { return n.Source.Execute(icx) }
	return execution.Sort(cx, build, n.KeyFn, n.Direction)
}

// Skip drops the first N documents of Source.
type Skip struct {
	Source Node
	N      int64
}

func (n *Skip) Execute(cx *execution.Context) execution.Stream {
	return execution.Skip(cx, n.Source.Execute(cx), n.N)
}

// FlushChanges materializes every document's pending writes into the
// transaction before forwarding.
type FlushChanges struct{ Source Node }

func (n *FlushChanges) Execute(cx *execution.Context) execution.Stream {
	return execution.FlushChanges(cx, n.Source.Execute(cx))
}

// Update wraps Source, applying Op to each document, honoring Limit
// (negative = unlimited), and firing Upsert if Source yielded nothing.
type Update struct {
	Source Node
	Op     execution.UpdateOp
	Limit  int64
	Upsert execution.UpsertOp
}

func (n *Update) Execute(cx *execution.Context) execution.Stream {
	return execution.Update(cx, n.Source.Execute(cx), n.Op, n.Limit, n.Upsert)
}

// Insert writes Docs against the collection's unbound context.
type Insert struct{ Docs []execution.NewDoc }

func (n *Insert) Execute(cx *execution.Context) execution.Stream {
	return execution.Insert(cx, n.Docs)
}

// IndexInsert creates a new index, applying the existing-index pre-check.
type IndexInsert struct {
	Existing []execution.IndexDescriptor
	Next     execution.IndexDescriptor
}

func (n *IndexInsert) Execute(cx *execution.Context) execution.Stream {
	return execution.IndexInsert(cx, n.Existing, n.Next)
}
