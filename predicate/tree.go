package predicate

import (
	"context"

	"github.com/TheBenCollins/fdb-document-layer/document"
)

// Predicate is the polymorphic tree of {ALL, NONE, AND, OR, NOT, ANY}.
// Operators and predicates are closed families, represented here as a
// tagged variant rather than an open interface hierarchy, so the
// pushdown rewriter in ../planner can be exhaustive over the
// constructors.
type Predicate struct {
	kind     kind
	children []Predicate // AND, OR
	inner    *Predicate  // NOT
	expr     Expr        // ANY
	leaf     Leaf        // ANY
}

type kind int

const (
	kindAll kind = iota
	kindNone
	kindAnd
	kindOr
	kindNot
	kindAny
)

func All() Predicate  { return Predicate{kind: kindAll} }
func None() Predicate { return Predicate{kind: kindNone} }

func And(children ...Predicate) Predicate {
	if len(children) == 1 {
		return children[0]
	}
	return Predicate{kind: kindAnd, children: children}
}

func Or(children ...Predicate) Predicate {
	if len(children) == 1 {
		return children[0]
	}
	return Predicate{kind: kindOr, children: children}
}

func Negate(p Predicate) Predicate { return Predicate{kind: kindNot, inner: &p} }

func Any(expr Expr, leaf Leaf) Predicate { return Predicate{kind: kindAny, expr: expr, leaf: leaf} }

func (p Predicate) IsAll() bool  { return p.kind == kindAll }
func (p Predicate) IsNone() bool { return p.kind == kindNone }
func (p Predicate) IsAnd() bool  { return p.kind == kindAnd }
func (p Predicate) IsOr() bool   { return p.kind == kindOr }
func (p Predicate) IsNot() bool  { return p.kind == kindNot }
func (p Predicate) IsAny() bool  { return p.kind == kindAny }

// Children returns AND/OR's subterms; nil for other kinds.
func (p Predicate) Children() []Predicate { return p.children }

// Inner returns NOT's negated subterm.
func (p Predicate) Inner() Predicate { return *p.inner }

// Expr and Leaf return ANY's expression and sub-predicate.
func (p Predicate) Expr() Expr { return p.expr }
func (p Predicate) Leaf() Leaf { return p.leaf }

// Evaluate walks the tree against doc, dispatching over the closed
// variant set.
func (p Predicate) Evaluate(ctx context.Context, doc document.Handle) (bool, error) {
	switch p.kind {
	case kindAll:
		return true, nil
	case kindNone:
		return false, nil
	case kindAnd:
		for _, c := range p.children {
			ok, err := c.Evaluate(ctx, doc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case kindOr:
		for _, c := range p.children {
			ok, err := c.Evaluate(ctx, doc)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case kindNot:
		ok, err := p.inner.Evaluate(ctx, doc)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case kindAny:
		v, present, err := p.expr.Evaluate(ctx, doc)
		if err != nil {
			return false, err
		}
		return p.leaf.Evaluate(v, present)
	default:
		return false, nil
	}
}

// String renders p for logging and plan-explain output.
func (p Predicate) String() string {
	switch p.kind {
	case kindAll:
		return "ALL"
	case kindNone:
		return "NONE"
	case kindAnd:
		return joinTerms("AND", p.children)
	case kindOr:
		return joinTerms("OR", p.children)
	case kindNot:
		return "NOT(" + p.inner.String() + ")"
	case kindAny:
		return "ANY(" + p.expr.String() + ")"
	default:
		return "?"
	}
}

func joinTerms(op string, terms []Predicate) string {
	s := op + "("
	for i, t := range terms {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s + ")"
}
