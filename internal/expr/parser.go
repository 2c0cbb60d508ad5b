package expr

import (
	"fmt"
	"strings"
)

// Parse parses a guard expression. Clauses that fall outside the
// supported subset become Opaque nodes and produce a warning; the
// surrounding boolean structure is still recovered, so one exotic
// clause does not discard the rest of the guard.
func Parse(s string) (Expr, []string) {
	src := stripDelimiters(s)
	if src == "" {
		// An absent or empty guard always runs.
		return Literal{Value: "true"}, nil
	}
	var warnings []string
	e := parseDisjunction(src, &warnings)
	return e, warnings
}

// parseDisjunction splits on top-level || so each branch can degrade
// independently.
func parseDisjunction(src string, warnings *[]string) Expr {
	parts := splitTopLevel(src, "||")
	result := parseConjunction(parts[0], warnings)
	for _, part := range parts[1:] {
		result = Or{Left: result, Right: parseConjunction(part, warnings)}
	}
	return result
}

func parseConjunction(src string, warnings *[]string) Expr {
	parts := splitTopLevel(src, "&&")
	result := parseClause(parts[0], warnings)
	for _, part := range parts[1:] {
		result = And{Left: result, Right: parseClause(part, warnings)}
	}
	return result
}

// parseClause parses one top-level clause in full. Any failure turns
// the whole clause opaque.
func parseClause(src string, warnings *[]string) Expr {
	raw := strings.TrimSpace(src)
	toks, err := lex(raw)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("unsupported clause %q: %v", raw, err))
		return Opaque{Raw: raw}
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err == nil && p.peek().kind != tokEOF {
		err = fmt.Errorf("unexpected %s", p.peek())
	}
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("unsupported clause %q: %v", raw, err))
		return Opaque{Raw: raw}
	}
	return e
}

// splitTopLevel splits src at every occurrence of op that sits
// outside parentheses and string literals.
func splitTopLevel(src, op string) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			if c == '\'' {
				if i+1 < len(src) && src[i+1] == '\'' {
					i++
					continue
				}
				inString = false
			}
			continue
		}
		switch c {
		case '\'':
			inString = true
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(src[i:], op) {
				parts = append(parts, src[start:i])
				i += len(op) - 1
				start = i + 1
			}
		}
	}
	return append(parts, src[start:])
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.peek().kind != kind {
		return fmt.Errorf("expected %s, found %s", what, p.peek())
	}
	p.next()
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	kind := p.peek().kind
	if kind != tokEq && kind != tokNeq {
		return left, nil
	}
	p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	op := OpEq
	if kind == tokNeq {
		op = OpNeq
	}
	return Compare{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	switch t := p.peek(); t.kind {
	case tokLParen:
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case tokString:
		p.next()
		return Literal{Value: t.text, Quoted: true}, nil
	case tokNumber:
		p.next()
		return Literal{Value: t.text}, nil
	case tokIdent:
		p.next()
		if t.text == "true" || t.text == "false" {
			return Literal{Value: t.text}, nil
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t.text)
		}
		return ContextRef{Path: t.text}, nil
	default:
		return nil, fmt.Errorf("unexpected %s", t)
	}
}

func (p *parser) parseCall(name string) (Expr, error) {
	if name != "contains" {
		return nil, fmt.Errorf("unsupported function %q", name)
	}
	if err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	haystack, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokComma, ","); err != nil {
		return nil, err
	}
	needle, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return Contains{Haystack: haystack, Needle: needle}, nil
}
