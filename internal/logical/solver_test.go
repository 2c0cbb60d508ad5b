package logical

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actsafe/actsafe/internal/expr"
)

func parseExpr(t *testing.T, s string) expr.Expr {
	t.Helper()
	e, _ := expr.Parse(s)
	return e
}

func newTestSolver() *Solver {
	return NewSolver(10*time.Second, zap.NewNop())
}

func TestCheckEquivalenceCommutedDisjunction(t *testing.T) {
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "github.event_name == 'push' || github.event_name == 'pull_request'"),
		parseExpr(t, "github.event_name == 'pull_request' || github.event_name == 'push'"))
	assert.Equal(t, Equivalent, res.Outcome)
}

func TestCheckEquivalenceDeMorgan(t *testing.T) {
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "!(github.event_name == 'push' || github.event_name == 'release')"),
		parseExpr(t, "github.event_name != 'push' && github.event_name != 'release'"))
	assert.Equal(t, Equivalent, res.Outcome)
}

func TestCheckEquivalenceDifferentEvents(t *testing.T) {
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "github.event_name == 'push'"),
		parseExpr(t, "github.event_name == 'pull_request'"))
	require.Equal(t, NotEquivalent, res.Outcome)
	assert.NotEmpty(t, res.Counterexample)
}

func TestCheckEquivalenceContainsSubsumption(t *testing.T) {
	// eq(ref, "refs/heads/main") forces contains(ref, "main"), so the
	// extra conjunct is redundant.
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "github.ref == 'refs/heads/main' && contains(github.ref, 'main')"),
		parseExpr(t, "github.ref == 'refs/heads/main'"))
	assert.Equal(t, Equivalent, res.Outcome)
}

func TestCheckEquivalenceContainsNotImpliedByOtherValue(t *testing.T) {
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "github.ref == 'refs/heads/dev' && contains(github.ref, 'main')"),
		parseExpr(t, "github.ref == 'refs/heads/dev'"))
	assert.Equal(t, NotEquivalent, res.Outcome)
}

func TestCheckEquivalenceBooleanContext(t *testing.T) {
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "!github.event.pull_request.draft"),
		parseExpr(t, "github.event.pull_request.draft == false"))
	assert.Equal(t, Equivalent, res.Outcome)
}

func TestCheckEquivalenceIdenticalOpaqueClauses(t *testing.T) {
	// The same unparseable clause on both sides shares one atom and
	// therefore compares equal to itself.
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "startsWith(github.ref, 'refs/tags/')"),
		parseExpr(t, "startsWith(github.ref, 'refs/tags/')"))
	assert.Equal(t, Equivalent, res.Outcome)
	assert.NotEmpty(t, res.Warnings)
}

func TestCheckEquivalenceDifferentOpaqueClauses(t *testing.T) {
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "startsWith(github.ref, 'refs/tags/')"),
		parseExpr(t, "endsWith(github.ref, '-rc')"))
	assert.Equal(t, NotEquivalent, res.Outcome)
}

func TestCheckEquivalenceVariableEquality(t *testing.T) {
	s := newTestSolver()
	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "github.event.pull_request.head.repo.full_name == github.repository"),
		parseExpr(t, "github.repository == github.event.pull_request.head.repo.full_name"))
	assert.Equal(t, Equivalent, res.Outcome, "variable equality should be symmetric")
}

func TestCheckEquivalenceQuotedStringsAreTruthy(t *testing.T) {
	s := newTestSolver()

	res := s.CheckEquivalence(context.Background(),
		parseExpr(t, "'false' && github.event_name == 'push'"),
		parseExpr(t, "github.event_name == 'push'"))
	assert.Equal(t, Equivalent, res.Outcome, "a quoted 'false' casts to true")

	res = s.CheckEquivalence(context.Background(),
		parseExpr(t, "'0' && github.event_name == 'push'"),
		parseExpr(t, "github.event_name == 'push'"))
	assert.Equal(t, Equivalent, res.Outcome, "a quoted '0' casts to true")

	res = s.CheckEquivalence(context.Background(),
		parseExpr(t, "false && github.event_name == 'push'"),
		parseExpr(t, "github.event_name == 'push'"))
	assert.Equal(t, NotEquivalent, res.Outcome, "the boolean false does not")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "equivalent", Equivalent.String())
	assert.Equal(t, "not-equivalent", NotEquivalent.String())
	assert.Equal(t, "inconclusive", Inconclusive.String())
}
