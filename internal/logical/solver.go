package logical

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/crillab/gophersat/bf"
	"go.uber.org/zap"

	"github.com/actsafe/actsafe/internal/expr"
	"github.com/actsafe/actsafe/internal/workflow"
)

// Outcome is the tri-state result of an equivalence query.
type Outcome int

const (
	Equivalent Outcome = iota
	NotEquivalent
	Inconclusive
)

func (o Outcome) String() string {
	switch o {
	case Equivalent:
		return "equivalent"
	case NotEquivalent:
		return "not-equivalent"
	case Inconclusive:
		return "inconclusive"
	}
	return "?"
}

// EquivalenceResult carries the outcome, a human-readable
// counterexample when the formulas differ, and encoding warnings.
type EquivalenceResult struct {
	Outcome        Outcome
	Counterexample []string
	Warnings       []string
}

// DefaultSolverTimeout bounds a single SAT query.
const DefaultSolverTimeout = 5 * time.Second

// Solver runs equivalence queries with a deadline. A query that
// exceeds the deadline is inconclusive, never silently safe.
type Solver struct {
	timeout time.Duration
	logger  *zap.Logger
}

func NewSolver(timeout time.Duration, logger *zap.Logger) *Solver {
	if timeout <= 0 {
		timeout = DefaultSolverTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{timeout: timeout, logger: logger}
}

// CheckEquivalence decides whether two guard expressions accept the
// same set of symbolic contexts. The query asks for a context where
// exactly one of the two holds; UNSAT means equivalent.
func (s *Solver) CheckEquivalence(ctx context.Context, a, b expr.Expr) EquivalenceResult {
	enc := newEncoder()
	fa := enc.encode(a)
	fb := enc.encode(b)
	return s.solveXor(ctx, enc, fa, fb)
}

// CheckTriggerEquivalence is CheckEquivalence over trigger lists.
func (s *Solver) CheckTriggerEquivalence(ctx context.Context, orig, mod []workflow.Trigger) EquivalenceResult {
	enc := newEncoder()
	fa := enc.encodeTriggers(orig)
	fb := enc.encodeTriggers(mod)
	return s.solveXor(ctx, enc, fa, fb)
}

func (s *Solver) solveXor(ctx context.Context, enc *encoder, fa, fb bf.Formula) EquivalenceResult {
	query := bf.And(append(enc.axioms(), bf.Xor(fa, fb))...)

	modelCh := make(chan map[string]bool, 1)
	go func() {
		modelCh <- bf.Solve(query)
	}()

	select {
	case model := <-modelCh:
		if model == nil {
			return EquivalenceResult{Outcome: Equivalent, Warnings: enc.warnings}
		}
		return EquivalenceResult{
			Outcome:        NotEquivalent,
			Counterexample: describeModel(model),
			Warnings:       enc.warnings,
		}
	case <-time.After(s.timeout):
		s.logger.Warn("solver timed out", zap.Duration("timeout", s.timeout))
		return EquivalenceResult{
			Outcome:  Inconclusive,
			Warnings: append(enc.warnings, "solver timed out"),
		}
	case <-ctx.Done():
		return EquivalenceResult{
			Outcome:  Inconclusive,
			Warnings: append(enc.warnings, "solver canceled: "+ctx.Err().Error()),
		}
	}
}

// describeModel renders a satisfying assignment as readable facts,
// keeping only the positive atoms plus negated boolean variables.
func describeModel(model map[string]bool) []string {
	var facts []string
	for atom, val := range model {
		switch {
		case val:
			facts = append(facts, atom)
		case strings.HasPrefix(atom, "bool("):
			facts = append(facts, "!"+atom)
		}
	}
	sort.Strings(facts)
	return facts
}
