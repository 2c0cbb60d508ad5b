package logical

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crillab/gophersat/bf"

	"github.com/actsafe/actsafe/internal/expr"
	"github.com/actsafe/actsafe/internal/workflow"
)

// encoder turns parsed guard expressions into bf formulas over named
// atoms, and generates the domain axioms that tie the atoms together.
// Both sides of an equivalence query must share one encoder so their
// atoms coincide.
type encoder struct {
	eqVals       map[string]map[string]bool // var -> literal values seen in ==
	containsVals map[string]map[string]bool // var -> substrings seen in contains()
	varPairs     map[[2]string]bool         // var-to-var equality atoms
	warnings     []string
}

func newEncoder() *encoder {
	return &encoder{
		eqVals:       make(map[string]map[string]bool),
		containsVals: make(map[string]map[string]bool),
		varPairs:     make(map[[2]string]bool),
	}
}

func eqAtom(varName, value string) string {
	return fmt.Sprintf("eq(%s,%q)", varName, value)
}

func containsAtom(varName, value string) string {
	return fmt.Sprintf("contains(%s,%q)", varName, value)
}

func boolAtom(varName string) string {
	return fmt.Sprintf("bool(%s)", varName)
}

func varPairAtom(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("same(%s,%s)", a, b)
}

func (e *encoder) warn(format string, args ...any) {
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
}

func (e *encoder) recordEq(varName, value string) bf.Formula {
	if e.eqVals[varName] == nil {
		e.eqVals[varName] = make(map[string]bool)
	}
	e.eqVals[varName][value] = true
	return bf.Var(eqAtom(varName, value))
}

func (e *encoder) recordContains(varName, value string) bf.Formula {
	if e.containsVals[varName] == nil {
		e.containsVals[varName] = make(map[string]bool)
	}
	e.containsVals[varName][value] = true
	return bf.Var(containsAtom(varName, value))
}

func (e *encoder) recordVarPair(a, b string) bf.Formula {
	if a > b {
		a, b = b, a
	}
	e.varPairs[[2]string{a, b}] = true
	return bf.Var(varPairAtom(a, b))
}

// opaqueVar gives identical opaque clauses on both sides the same
// unconstrained atom, so a guard that is unchanged but unparseable
// still compares equal to itself.
func (e *encoder) opaqueVar(raw string) bf.Formula {
	return bf.Var("opaque(" + raw + ")")
}

// encode translates an expression to a formula. It never fails: the
// fragments it cannot model become unconstrained atoms with a
// warning, which can only push the verdict toward "not equivalent"
// or "inconclusive".
func (e *encoder) encode(x expr.Expr) bf.Formula {
	switch n := x.(type) {
	case expr.Literal:
		return e.encodeLiteralTruth(n)
	case expr.ContextRef:
		v := resolveVar(n.Path)
		return bf.Var(boolAtom(v.name))
	case expr.Compare:
		f := e.encodeCompare(n)
		if n.Op == expr.OpNeq {
			return bf.Not(f)
		}
		return f
	case expr.Contains:
		return e.encodeContains(n)
	case expr.And:
		return bf.And(e.encode(n.Left), e.encode(n.Right))
	case expr.Or:
		return bf.Or(e.encode(n.Left), e.encode(n.Right))
	case expr.Not:
		return bf.Not(e.encode(n.Inner))
	case expr.Opaque:
		return e.opaqueVar(n.Raw)
	}
	e.warn("unencodable expression %s", x)
	return e.opaqueVar(x.String())
}

func (e *encoder) encodeLiteralTruth(l expr.Literal) bf.Formula {
	// Expression casting: any non-empty string is truthy, so a quoted
	// 'false' or '0' is still true.
	if l.Quoted {
		if l.Value == "" {
			return bf.False
		}
		return bf.True
	}
	switch l.Value {
	case "true":
		return bf.True
	case "false", "", "0":
		return bf.False
	}
	return bf.True
}

func (e *encoder) encodeCompare(c expr.Compare) bf.Formula {
	left, lok := c.Left.(expr.ContextRef)
	right, rok := c.Right.(expr.ContextRef)

	switch {
	case lok && rok:
		return e.recordVarPair(resolveVar(left.Path).name, resolveVar(right.Path).name)
	case lok:
		if lit, ok := c.Right.(expr.Literal); ok {
			return e.compareVarLiteral(resolveVar(left.Path), lit)
		}
	case rok:
		if lit, ok := c.Left.(expr.Literal); ok {
			return e.compareVarLiteral(resolveVar(right.Path), lit)
		}
	default:
		llit, lk := c.Left.(expr.Literal)
		rlit, rk := c.Right.(expr.Literal)
		if lk && rk {
			if llit.Value == rlit.Value {
				return bf.True
			}
			return bf.False
		}
	}
	e.warn("comparison %s is outside the encodable subset", c)
	return e.opaqueVar(c.String())
}

func (e *encoder) compareVarLiteral(v contextVar, lit expr.Literal) bf.Formula {
	if v.kind == varBool {
		switch lit.Value {
		case "true":
			return bf.Var(boolAtom(v.name))
		case "false":
			return bf.Not(bf.Var(boolAtom(v.name)))
		}
	}
	return e.recordEq(v.name, lit.Value)
}

func (e *encoder) encodeContains(c expr.Contains) bf.Formula {
	ref, rok := c.Haystack.(expr.ContextRef)
	lit, lok := c.Needle.(expr.Literal)
	if rok && lok {
		return e.recordContains(resolveVar(ref.Path).name, lit.Value)
	}
	e.warn("contains %s is outside the encodable subset", c)
	return e.opaqueVar(c.String())
}

// encodeTriggers compiles a trigger list to the condition under
// which the workflow fires: a disjunction over events, each with its
// branch constraints. Path filters are not expressible over the
// symbolic context and become unconstrained with a warning.
func (e *encoder) encodeTriggers(triggers []workflow.Trigger) bf.Formula {
	if len(triggers) == 0 {
		return bf.False
	}
	clauses := make([]bf.Formula, 0, len(triggers))
	for _, t := range triggers {
		clause := e.recordEq("event_name", t.Event)
		if f := e.encodeBranchFilter(t.Branches, false); f != nil {
			clause = bf.And(clause, f)
		}
		if f := e.encodeBranchFilter(t.BranchesIgnore, true); f != nil {
			clause = bf.And(clause, f)
		}
		if len(t.Paths) > 0 || len(t.PathsIgnore) > 0 {
			e.warn("path filters on %q are not modeled; treated as unconstrained", t.Event)
		}
		clauses = append(clauses, clause)
	}
	return bf.Or(clauses...)
}

func (e *encoder) encodeBranchFilter(patterns []string, negate bool) bf.Formula {
	if len(patterns) == 0 {
		return nil
	}
	var alts []bf.Formula
	for _, p := range patterns {
		if strings.ContainsAny(p, "*?[") {
			e.warn("branch glob %q is not modeled; treated as unconstrained", p)
			continue
		}
		alts = append(alts, e.recordContains("ref", p))
	}
	if len(alts) == 0 {
		return nil
	}
	f := bf.Or(alts...)
	if negate {
		return bf.Not(f)
	}
	return f
}

// axioms produces the background theory tying the atoms together:
// one value per variable, literal substring facts for contains, and
// congruence for variable-to-variable equality.
func (e *encoder) axioms() []bf.Formula {
	var out []bf.Formula

	for _, varName := range sortedVarNames(e.eqVals) {
		vals := sortedValues(e.eqVals[varName])
		for i := 0; i < len(vals); i++ {
			for j := i + 1; j < len(vals); j++ {
				out = append(out, bf.Not(bf.And(
					bf.Var(eqAtom(varName, vals[i])),
					bf.Var(eqAtom(varName, vals[j])))))
			}
		}
		for _, v := range vals {
			for _, s := range sortedValues(e.containsVals[varName]) {
				eq := bf.Var(eqAtom(varName, v))
				ct := bf.Var(containsAtom(varName, s))
				if strings.Contains(v, s) {
					out = append(out, bf.Implies(eq, ct))
				} else {
					out = append(out, bf.Implies(eq, bf.Not(ct)))
				}
			}
		}
	}

	for _, varName := range sortedVarNames(e.containsVals) {
		subs := sortedValues(e.containsVals[varName])
		for _, s1 := range subs {
			for _, s2 := range subs {
				if s1 != s2 && strings.Contains(s2, s1) {
					out = append(out, bf.Implies(
						bf.Var(containsAtom(varName, s2)),
						bf.Var(containsAtom(varName, s1))))
				}
			}
		}
	}

	pairs := make([][2]string, 0, len(e.varPairs))
	for pair := range e.varPairs {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i][0]+pairs[i][1] < pairs[j][0]+pairs[j][1]
	})
	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		same := bf.Var(varPairAtom(a, b))
		for _, v := range sortedValues(e.eqVals[a]) {
			if e.eqVals[b] != nil && e.eqVals[b][v] {
				out = append(out, bf.Implies(bf.And(same, bf.Var(eqAtom(a, v))), bf.Var(eqAtom(b, v))))
				out = append(out, bf.Implies(bf.And(same, bf.Var(eqAtom(b, v))), bf.Var(eqAtom(a, v))))
			}
		}
	}

	return out
}

func sortedVarNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedValues(m map[string]bool) []string {
	vals := make([]string, 0, len(m))
	for v := range m {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return vals
}
