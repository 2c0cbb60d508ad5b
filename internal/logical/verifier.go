package logical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/actsafe/actsafe/internal/expr"
	"github.com/actsafe/actsafe/internal/fixes"
	"github.com/actsafe/actsafe/internal/workflow"
)

// Finding is one semantic difference between original and modified.
type Finding struct {
	Domain         string
	Location       string
	Detail         string
	Counterexample []string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s (%s): %s", f.Location, f.Domain, f.Detail)
}

// Result is the outcome of logical verification. Inconclusive marks
// queries the solver could not settle; it is never folded into
// IsSafe.
type Result struct {
	IsSafe       bool
	Inconclusive bool
	Findings     []Finding
	Warnings     []string
}

// Config controls logical verification. Strict mode disables every
// allowed-delta shortcut: only exact equivalence passes.
type Config struct {
	Strict        bool
	SolverTimeout time.Duration
}

// Verifier checks trigger conditions, if guards, and concurrency
// blocks for semantic equivalence.
type Verifier struct {
	solver *Solver
	strict bool
	logger *zap.Logger
}

func NewVerifier(cfg Config, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		solver: NewSolver(cfg.SolverTimeout, logger),
		strict: cfg.Strict,
		logger: logger,
	}
}

// Verify compares the three logical domains of two workflows. The
// symbolic context is fresh for every query; nothing leaks between
// invocations or between domains.
func (v *Verifier) Verify(ctx context.Context, orig, mod *workflow.Workflow, active fixes.Set) Result {
	var res Result
	v.verifyTriggers(ctx, orig, mod, active, &res)
	v.verifyGuards(ctx, orig, mod, active, &res)
	v.verifyConcurrency(orig, mod, active, &res)
	res.IsSafe = len(res.Findings) == 0 && !res.Inconclusive
	return res
}

func (v *Verifier) verifyTriggers(ctx context.Context, orig, mod *workflow.Workflow, active fixes.Set, res *Result) {
	origOn := orig.Root.Get("on")
	modOn := mod.Root.Get("on")
	if origOn.Equal(modOn) {
		return
	}

	if !v.strict && active.Has(fixes.PathFilter) && pathFilterOnlyDelta(orig.Triggers, mod.Triggers) {
		v.logger.Debug("trigger delta is a permitted path filter addition")
		return
	}

	// Path filters and branch globs are invisible to the encoding, so
	// a change there must be decided before the solver is consulted.
	if pathFiltersChanged(orig.Triggers, mod.Triggers) {
		detail := "path filters changed without the enabling fix being permitted"
		if active.Has(fixes.PathFilter) {
			detail = "trigger delta exceeds the permitted path filter addition"
		}
		res.Findings = append(res.Findings, Finding{
			Domain:   "trigger",
			Location: "on",
			Detail:   detail,
		})
	}
	if branchGlobsChanged(orig.Triggers, mod.Triggers) {
		res.Warnings = append(res.Warnings, "branch glob patterns changed; equivalence not decidable")
		res.Inconclusive = true
	}

	eq := v.solver.CheckTriggerEquivalence(ctx, orig.Triggers, mod.Triggers)
	res.Warnings = append(res.Warnings, eq.Warnings...)
	switch eq.Outcome {
	case Equivalent:
	case NotEquivalent:
		res.Findings = append(res.Findings, Finding{
			Domain:         "trigger",
			Location:       "on",
			Detail:         "trigger conditions are not equivalent",
			Counterexample: eq.Counterexample,
		})
	case Inconclusive:
		res.Inconclusive = true
	}
}

func (v *Verifier) verifyGuards(ctx context.Context, orig, mod *workflow.Workflow, active fixes.Set, res *Result) {
	for _, origJob := range orig.Jobs {
		modJob := mod.Job(origJob.ID)
		if modJob == nil {
			continue
		}
		v.checkGuard(ctx, "jobs/"+origJob.ID+"/if", origJob.If, modJob.If, active, res)

		if len(origJob.Steps) != len(modJob.Steps) {
			continue
		}
		for i := range origJob.Steps {
			v.checkGuard(ctx,
				fmt.Sprintf("jobs/%s/steps/%d/if", origJob.ID, i),
				origJob.Steps[i].If, modJob.Steps[i].If, active, res)
		}
	}
}

func (v *Verifier) checkGuard(ctx context.Context, location, origIf, modIf string, active fixes.Set, res *Result) {
	if origIf == modIf {
		return
	}

	origExpr, origWarn := expr.Parse(origIf)
	modExpr, modWarn := expr.Parse(modIf)
	res.Warnings = append(res.Warnings, origWarn...)
	res.Warnings = append(res.Warnings, modWarn...)

	if expr.Equal(origExpr, modExpr) {
		return
	}

	if !v.strict && active.Has(fixes.ForkPrevention) && isGuardStrengthening(origExpr, modExpr) {
		v.logger.Debug("guard delta is a permitted fork-prevention strengthening",
			zap.String("location", location))
		return
	}

	eq := v.solver.CheckEquivalence(ctx, origExpr, modExpr)
	res.Warnings = append(res.Warnings, eq.Warnings...)
	switch eq.Outcome {
	case Equivalent:
	case NotEquivalent:
		res.Findings = append(res.Findings, Finding{
			Domain:         "guard",
			Location:       location,
			Detail:         fmt.Sprintf("guard %q is not equivalent to %q", origIf, modIf),
			Counterexample: eq.Counterexample,
		})
	case Inconclusive:
		res.Inconclusive = true
	}
}

func (v *Verifier) verifyConcurrency(orig, mod *workflow.Workflow, active fixes.Set, res *Result) {
	v.checkConcurrency("concurrency", orig.Concurrency, mod.Concurrency, active, res)
	for _, origJob := range orig.Jobs {
		modJob := mod.Job(origJob.ID)
		if modJob == nil {
			continue
		}
		v.checkConcurrency("jobs/"+origJob.ID+"/concurrency",
			origJob.Concurrency, modJob.Concurrency, active, res)
	}
}

func (v *Verifier) checkConcurrency(location string, orig, mod *workflow.Node, active fixes.Set, res *Result) {
	switch {
	case orig.Equal(mod):
	case orig == nil:
		if !v.strict && active.Has(fixes.ConcurrencyControl) {
			v.logger.Debug("concurrency addition permitted", zap.String("location", location))
			return
		}
		res.Findings = append(res.Findings, Finding{
			Domain:   "concurrency",
			Location: location,
			Detail:   "concurrency block added without the enabling fix being permitted",
		})
	case mod == nil:
		res.Findings = append(res.Findings, Finding{
			Domain:   "concurrency",
			Location: location,
			Detail:   "concurrency block removed",
		})
	default:
		res.Findings = append(res.Findings, Finding{
			Domain:   "concurrency",
			Location: location,
			Detail:   "concurrency settings changed",
		})
	}
}

// pathFilterOnlyDelta reports whether the modified trigger list is
// the original with path filters added and nothing else touched.
func pathFilterOnlyDelta(orig, mod []workflow.Trigger) bool {
	if len(orig) != len(mod) {
		return false
	}
	for i := range orig {
		o, m := orig[i], mod[i]
		if o.Event != m.Event {
			return false
		}
		if !sameStrings(o.Branches, m.Branches) || !sameStrings(o.BranchesIgnore, m.BranchesIgnore) {
			return false
		}
		if len(o.Paths) > 0 && !sameStrings(o.Paths, m.Paths) {
			return false
		}
		if len(o.PathsIgnore) > 0 && !sameStrings(o.PathsIgnore, m.PathsIgnore) {
			return false
		}
		if !stripPathKeys(o.Config).Equal(stripPathKeys(m.Config)) {
			return false
		}
	}
	return true
}

// pathFiltersChanged reports whether any event shared by both sides
// has different path filters.
func pathFiltersChanged(orig, mod []workflow.Trigger) bool {
	modBy := triggersByEvent(mod)
	for _, o := range orig {
		m, ok := modBy[o.Event]
		if !ok {
			continue
		}
		if !sameStrings(o.Paths, m.Paths) || !sameStrings(o.PathsIgnore, m.PathsIgnore) {
			return true
		}
	}
	return false
}

// branchGlobsChanged reports whether the glob-bearing portion of any
// shared event's branch filters differs.
func branchGlobsChanged(orig, mod []workflow.Trigger) bool {
	modBy := triggersByEvent(mod)
	for _, o := range orig {
		m, ok := modBy[o.Event]
		if !ok {
			continue
		}
		if !sameStrings(globsOf(o.Branches), globsOf(m.Branches)) ||
			!sameStrings(globsOf(o.BranchesIgnore), globsOf(m.BranchesIgnore)) {
			return true
		}
	}
	return false
}

func globsOf(patterns []string) []string {
	var globs []string
	for _, p := range patterns {
		if strings.ContainsAny(p, "*?[") {
			globs = append(globs, p)
		}
	}
	return globs
}

func triggersByEvent(triggers []workflow.Trigger) map[string]workflow.Trigger {
	by := make(map[string]workflow.Trigger, len(triggers))
	for _, t := range triggers {
		by[t.Event] = t
	}
	return by
}

// stripPathKeys removes paths and paths-ignore from a trigger config
// so the rest can be compared exactly.
func stripPathKeys(n *workflow.Node) *workflow.Node {
	if n == nil || n.Kind != workflow.Mapping {
		return n
	}
	out := &workflow.Node{Kind: workflow.Mapping}
	for _, e := range n.Entries {
		if e.Key == "paths" || e.Key == "paths-ignore" {
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// isGuardStrengthening reports whether the modified guard is the
// original guard with extra fork-prevention conjuncts. That is the
// only guard change a permitted fix may introduce.
func isGuardStrengthening(orig, mod expr.Expr) bool {
	origConj := expr.Conjuncts(orig)
	modConj := expr.Conjuncts(mod)
	if len(modConj) < len(origConj) {
		return false
	}

	matched := make([]bool, len(modConj))
	for _, oc := range origConj {
		if isTrueLiteral(oc) {
			continue
		}
		found := false
		for i, mc := range modConj {
			if !matched[i] && expr.Equal(oc, mc) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for i, mc := range modConj {
		if matched[i] {
			continue
		}
		if !isForkGuard(mc) {
			return false
		}
	}
	return true
}

func isTrueLiteral(e expr.Expr) bool {
	lit, ok := e.(expr.Literal)
	return ok && lit.Value == "true" && !lit.Quoted
}

// isForkGuard reports whether an expression only constrains the
// repository-identity portion of the context, such as
// head.repo.full_name == github.repository.
func isForkGuard(e expr.Expr) bool {
	refs, clean := contextRefs(e)
	if !clean || len(refs) == 0 {
		return false
	}
	for _, r := range refs {
		if !forkGuardVars[r] {
			return false
		}
	}
	return true
}

// contextRefs collects every context path in an expression. clean is
// false when the expression contains an opaque fragment.
func contextRefs(e expr.Expr) (refs []string, clean bool) {
	clean = true
	var walk func(expr.Expr)
	walk = func(x expr.Expr) {
		switch n := x.(type) {
		case expr.ContextRef:
			refs = append(refs, n.Path)
		case expr.Compare:
			walk(n.Left)
			walk(n.Right)
		case expr.Contains:
			walk(n.Haystack)
			walk(n.Needle)
		case expr.And:
			walk(n.Left)
			walk(n.Right)
		case expr.Or:
			walk(n.Left)
			walk(n.Right)
		case expr.Not:
			walk(n.Inner)
		case expr.Opaque:
			clean = false
		}
	}
	walk(e)
	return refs, clean
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
