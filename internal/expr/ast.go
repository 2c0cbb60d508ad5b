// Package expr parses the subset of GitHub Actions expressions that
// guard conditions in practice: context references, string/boolean
// literals, equality, contains(), and boolean connectives. Anything
// outside the subset degrades to an opaque clause instead of failing
// the whole parse.
package expr

import "fmt"

// Expr is a parsed expression node.
type Expr interface {
	isExpr()
	String() string
}

// Literal is a string, number, or boolean literal. Values are kept as
// their string spelling; the verifier compares them textually.
type Literal struct {
	Value  string
	Quoted bool
}

// ContextRef is a dotted context path such as github.event_name.
type ContextRef struct {
	Path string
}

// CompareOp is the operator of a Compare node.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNeq
)

// Compare is an equality or inequality test.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

// Contains is a contains(haystack, needle) call.
type Contains struct {
	Haystack Expr
	Needle   Expr
}

// And is a conjunction.
type And struct {
	Left  Expr
	Right Expr
}

// Or is a disjunction.
type Or struct {
	Left  Expr
	Right Expr
}

// Not is a negation.
type Not struct {
	Inner Expr
}

// Opaque wraps a clause the parser could not understand. The solver
// treats it as unconstrained, which makes verification conservative
// but never unsound in the safe direction.
type Opaque struct {
	Raw string
}

func (Literal) isExpr()    {}
func (ContextRef) isExpr() {}
func (Compare) isExpr()    {}
func (Contains) isExpr()   {}
func (And) isExpr()        {}
func (Or) isExpr()         {}
func (Not) isExpr()        {}
func (Opaque) isExpr()     {}

func (l Literal) String() string {
	if l.Quoted {
		return "'" + l.Value + "'"
	}
	return l.Value
}

func (r ContextRef) String() string { return r.Path }

func (c Compare) String() string {
	op := "=="
	if c.Op == OpNeq {
		op = "!="
	}
	return fmt.Sprintf("%s %s %s", c.Left, op, c.Right)
}

func (c Contains) String() string {
	return fmt.Sprintf("contains(%s, %s)", c.Haystack, c.Needle)
}

func (a And) String() string { return fmt.Sprintf("(%s && %s)", a.Left, a.Right) }
func (o Or) String() string  { return fmt.Sprintf("(%s || %s)", o.Left, o.Right) }
func (n Not) String() string { return fmt.Sprintf("!(%s)", n.Inner) }
func (o Opaque) String() string {
	return fmt.Sprintf("opaque(%s)", o.Raw)
}

// Conjuncts flattens nested And nodes into a flat clause list.
func Conjuncts(e Expr) []Expr {
	if a, ok := e.(And); ok {
		return append(Conjuncts(a.Left), Conjuncts(a.Right)...)
	}
	return []Expr{e}
}

// Equal reports structural equality of two expressions.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case Literal:
		y, ok := b.(Literal)
		return ok && x.Value == y.Value && x.Quoted == y.Quoted
	case ContextRef:
		y, ok := b.(ContextRef)
		return ok && x.Path == y.Path
	case Compare:
		y, ok := b.(Compare)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case Contains:
		y, ok := b.(Contains)
		return ok && Equal(x.Haystack, y.Haystack) && Equal(x.Needle, y.Needle)
	case And:
		y, ok := b.(And)
		return ok && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case Or:
		y, ok := b.(Or)
		return ok && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case Not:
		y, ok := b.(Not)
		return ok && Equal(x.Inner, y.Inner)
	case Opaque:
		y, ok := b.(Opaque)
		return ok && x.Raw == y.Raw
	}
	return false
}

// HasOpaque reports whether any sub-expression is opaque.
func HasOpaque(e Expr) bool {
	switch x := e.(type) {
	case Opaque:
		return true
	case Compare:
		return HasOpaque(x.Left) || HasOpaque(x.Right)
	case Contains:
		return HasOpaque(x.Haystack) || HasOpaque(x.Needle)
	case And:
		return HasOpaque(x.Left) || HasOpaque(x.Right)
	case Or:
		return HasOpaque(x.Left) || HasOpaque(x.Right)
	case Not:
		return HasOpaque(x.Inner)
	}
	return false
}
