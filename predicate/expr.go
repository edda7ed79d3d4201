// Package predicate implements the polymorphic predicate tree:
// {ALL, NONE, AND, OR, NOT, ANY(expr, leaf)}, plus the leaf predicates
// exposing GetRange/RangeIsTight that the pushdown rewriter in ../planner
// consumes. Field-path evaluation and value predicates here are the
// minimal expression surface the engine covers; general expression
// evaluation is explicitly an external collaborator.
package predicate

import (
	"context"

	"github.com/TheBenCollins/fdb-document-layer/document"
)

// Expr extracts a scalar value from a document: the ANY variant's expr
// argument. FieldPath is the only concrete Expr the engine needs: a
// top-level field reference, optionally the primary key.
type Expr interface {
	Evaluate(ctx context.Context, doc document.Handle) (document.Value, bool, error)
	// IndexKey returns the encoded key this expression corresponds to
	// when used as a simple index's indexed path, and ok=true if this
	// expression can be pushed into an index scan at all.
	IndexKey() (document.Value, bool)
	IsPrimaryKey() bool
	String() string
}

// FieldPath is a top-level field reference. name == "_id" denotes the
// primary key path, the special case TableScan's ANY(expr, p) pushdown
// rule recognizes.
type FieldPath struct {
	Name string
}

// Evaluate returns the first (or only) value stored at f's path. Fields
// are stored as one or more document.EncodeKeyPart-encoded values
// concatenated (document.EncodeValues); a scalar field has exactly one.
func (f FieldPath) Evaluate(_ context.Context, doc document.Handle) (document.Value, bool, error) {
	raw, ok, err := doc.Get(context.Background(), []byte(f.Name))
	if err != nil || !ok {
		return document.Value{}, false, err
	}
	v, _, err := document.DecodeKeyPart(raw)
	if err != nil {
		return document.Value{}, false, err
	}
	return v, true, nil
}

// EvaluateAll returns every value f's path holds on doc: a scalar field
// decodes to a single-element slice, an array-typed field (stored as the
// concatenation of its elements' encodings, via document.EncodeValues)
// decodes to one element per array member. Used by index deduplication,
// which needs a field's full value set to find the largest one below an
// index's upper bound.
func (f FieldPath) EvaluateAll(_ context.Context, doc document.Handle) ([]document.Value, bool, error) {
	raw, ok, err := doc.Get(context.Background(), []byte(f.Name))
	if err != nil || !ok {
		return nil, false, err
	}
	vs, err := document.DecodeValues(raw)
	if err != nil {
		return nil, false, err
	}
	return vs, true, nil
}

func (f FieldPath) IndexKey() (document.Value, bool) {
	return document.Str(f.Name), true
}

func (f FieldPath) IsPrimaryKey() bool { return f.Name == "_id" }
func (f FieldPath) String() string     { return f.Name }
