package structural

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/actsafe/actsafe/internal/fixes"
	"github.com/actsafe/actsafe/internal/workflow"
)

// Issue is one structural finding. Every issue is critical: a safe
// result has no issues at all.
type Issue struct {
	Path   string
	Kind   string
	Detail string
}

func (i Issue) String() string {
	path := i.Path
	if path == "" {
		path = "(root)"
	}
	return fmt.Sprintf("%s: %s [%s]", path, i.Detail, i.Kind)
}

// Result is the outcome of a structural comparison.
type Result struct {
	IsSafe bool
	Issues []Issue
}

// Config carries the rule table and rewrite table. Nil fields fall
// back to the built-in defaults.
type Config struct {
	Rules    *RuleSet
	Rewrites *RewriteTable
}

// Verifier compares two workflow trees' key/shape structure under an
// allow-list of permitted deltas. No solver is involved; this is a
// deterministic tree diff with classification rules.
type Verifier struct {
	rules    RuleSet
	rewrites *RewriteTable
	logger   *zap.Logger
}

// NewVerifier creates a structural verifier.
func NewVerifier(cfg Config, logger *zap.Logger) *Verifier {
	v := &Verifier{
		rules:    DefaultRules(),
		rewrites: DefaultRewrites(),
		logger:   logger,
	}
	if cfg.Rules != nil {
		v.rules = *cfg.Rules
	}
	if cfg.Rewrites != nil {
		v.rewrites = cfg.Rewrites
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	return v
}

// Verify compares original and modified workflows. The permitted-fix
// set gates which allow-list rules apply; needs and matrix deltas
// are critical regardless, because they change the execution graph.
func (v *Verifier) Verify(orig, mod *workflow.Workflow, active fixes.Set) Result {
	var issues []Issue

	ksOrig := ExtractKeyStructure(orig.Root)
	ksMod := ExtractKeyStructure(mod.Root)

	issues = append(issues, v.compareKeyStructures(ksOrig, ksMod, active)...)
	issues = append(issues, v.compareJobOrder(orig, mod)...)
	issues = append(issues, v.compareStructuralValues(orig, mod)...)
	issues = append(issues, v.compareSteps(orig, mod)...)

	if len(issues) > 0 {
		v.logger.Debug("structural verification found issues",
			zap.Int("count", len(issues)))
	}
	return Result{IsSafe: len(issues) == 0, Issues: issues}
}

// compareKeyStructures reports removed keys, added keys, and shape
// changes. Only the topmost path of a removed or added subtree is
// reported; its children follow from it.
func (v *Verifier) compareKeyStructures(ksOrig, ksMod KeyStructure, active fixes.Set) []Issue {
	var issues []Issue

	for _, path := range sortedPaths(ksOrig) {
		if _, ok := ksMod[path]; ok {
			continue
		}
		if !topmost(path, ksMod) {
			continue
		}
		if v.rules.Allows(path, ChangeRemoval, active) {
			v.logger.Debug("allowed removal", zap.String("path", path))
			continue
		}
		issues = append(issues, Issue{Path: path, Kind: "key-removed",
			Detail: "structural key removed"})
	}

	for _, path := range sortedPaths(ksMod) {
		if _, ok := ksOrig[path]; ok {
			continue
		}
		if !topmost(path, ksOrig) {
			continue
		}
		if v.rules.Allows(path, ChangeAddition, active) {
			v.logger.Debug("allowed addition", zap.String("path", path))
			continue
		}
		issues = append(issues, Issue{Path: path, Kind: "key-added",
			Detail: "unexpected structural key added"})
	}

	for _, path := range sortedPaths(ksOrig) {
		entryMod, ok := ksMod[path]
		if !ok {
			continue
		}
		entryOrig := ksOrig[path]
		if entryOrig.Kind != entryMod.Kind {
			if v.rules.Allows(path, ChangeTypeChange, active) {
				v.logger.Debug("allowed type change", zap.String("path", path))
				continue
			}
			issues = append(issues, Issue{Path: path, Kind: "type-changed",
				Detail: fmt.Sprintf("node type changed (%s -> %s)", entryOrig.Kind, entryMod.Kind)})
			continue
		}
		if entryOrig.Kind == KindScalar && entryOrig.ScalarType != entryMod.ScalarType {
			if v.rules.Allows(path, ChangeValueRewrite, active) {
				continue
			}
			issues = append(issues, Issue{Path: path, Kind: "type-changed",
				Detail: fmt.Sprintf("scalar type changed (%s -> %s)", entryOrig.ScalarType, entryMod.ScalarType)})
		}
	}

	return issues
}

// compareJobOrder checks that top-level job ordering is preserved.
// Added/removed jobs surface through the key-structure comparison;
// here only reordering of the surviving set is flagged.
func (v *Verifier) compareJobOrder(orig, mod *workflow.Workflow) []Issue {
	modIndex := make(map[string]bool, len(mod.Jobs))
	for _, j := range mod.Jobs {
		modIndex[j.ID] = true
	}
	var origIDs []string
	for _, j := range orig.Jobs {
		if modIndex[j.ID] {
			origIDs = append(origIDs, j.ID)
		}
	}
	origIndex := make(map[string]bool, len(orig.Jobs))
	for _, j := range orig.Jobs {
		origIndex[j.ID] = true
	}
	var modIDs []string
	for _, j := range mod.Jobs {
		if origIndex[j.ID] {
			modIDs = append(modIDs, j.ID)
		}
	}
	if !sameKeys(origIDs, modIDs) {
		return []Issue{{Path: "jobs", Kind: "order-changed",
			Detail: fmt.Sprintf("job order changed (%s -> %s)",
				strings.Join(origIDs, ","), strings.Join(modIDs, ","))}}
	}
	return nil
}

// compareStructuralValues enforces the value-is-structure rule:
// needs and matrix are compared as structure, unconditionally, even
// under an active allow-list.
func (v *Verifier) compareStructuralValues(orig, mod *workflow.Workflow) []Issue {
	var issues []Issue
	for _, origJob := range orig.Jobs {
		modJob := mod.Job(origJob.ID)
		if modJob == nil {
			continue // removal reported by key-structure comparison
		}
		if !sameKeys(origJob.Needs, modJob.Needs) {
			issues = append(issues, Issue{
				Path: "jobs/" + origJob.ID + "/needs",
				Kind: "dependency-changed",
				Detail: fmt.Sprintf("job dependencies changed ([%s] -> [%s])",
					strings.Join(origJob.Needs, ","), strings.Join(modJob.Needs, ",")),
			})
		}
		if !origJob.Matrix.Equal(modJob.Matrix) {
			issues = append(issues, Issue{
				Path:   "jobs/" + origJob.ID + "/strategy/matrix",
				Kind:   "matrix-changed",
				Detail: "strategy matrix changed",
			})
		}
	}
	return issues
}

// compareSteps detects count changes, reordering, execution-type
// flips, action swaps, id changes, and run-body edits that survive
// the safe-rewrite canonicalization.
func (v *Verifier) compareSteps(orig, mod *workflow.Workflow) []Issue {
	var issues []Issue
	for _, origJob := range orig.Jobs {
		modJob := mod.Job(origJob.ID)
		if modJob == nil {
			continue
		}
		base := "jobs/" + origJob.ID + "/steps"

		if len(origJob.Steps) != len(modJob.Steps) {
			issues = append(issues, Issue{Path: base, Kind: "length-changed",
				Detail: fmt.Sprintf("step count changed (%d -> %d)",
					len(origJob.Steps), len(modJob.Steps))})
			continue
		}

		origFPs := make([]string, len(origJob.Steps))
		modFPs := make([]string, len(modJob.Steps))
		for i := range origJob.Steps {
			origFPs[i] = Fingerprint(origJob.Steps[i], v.rewrites)
			modFPs[i] = Fingerprint(modJob.Steps[i], v.rewrites)
		}

		if !sameKeys(origFPs, modFPs) && sameFingerprintMultiset(origFPs, modFPs) {
			issues = append(issues, Issue{Path: base, Kind: "order-changed",
				Detail: "steps reordered (same step set, different positions)"})
			continue
		}

		for i := range origJob.Steps {
			issues = append(issues, v.compareStep(origJob.Steps[i], modJob.Steps[i],
				fmt.Sprintf("%s/%d", base, i))...)
		}
	}
	return issues
}

func (v *Verifier) compareStep(orig, mod workflow.Step, path string) []Issue {
	var issues []Issue

	if orig.IsAction() != mod.IsAction() {
		issues = append(issues, Issue{Path: path, Kind: "execution-type-changed",
			Detail: "step execution type changed (run <-> uses)"})
		return issues
	}

	if orig.IsAction() {
		if !isVersionBump(orig.Uses, mod.Uses) {
			issues = append(issues, Issue{Path: path + "/uses", Kind: "action-changed",
				Detail: fmt.Sprintf("step action changed (%s -> %s)", orig.Uses, mod.Uses)})
		}
	} else if orig.Run != "" && mod.Run != "" {
		if v.rewrites.Canonicalize(orig.Run) != v.rewrites.Canonicalize(mod.Run) {
			issues = append(issues, Issue{Path: path + "/run", Kind: "value-changed",
				Detail: "run command changed beyond recognized safe rewrites"})
		}
	}

	if orig.ID != mod.ID {
		issues = append(issues, Issue{Path: path + "/id", Kind: "id-changed",
			Detail: fmt.Sprintf("step id changed (%q -> %q); downstream references may break", orig.ID, mod.ID)})
	}

	return issues
}

// topmost reports whether path is the highest path of a changed
// subtree relative to the other structure: either it has no parent,
// or its parent exists on the other side.
func topmost(path string, other KeyStructure) bool {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return true
	}
	_, ok := other[path[:i]]
	return ok
}

func sortedPaths(ks KeyStructure) []string {
	paths := make([]string, 0, len(ks))
	for p := range ks {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		return lessPath(paths[i], paths[j])
	})
	return paths
}

// lessPath orders paths segment-wise with numeric ordering for
// sequence indices, so issue output is stable and readable.
func lessPath(a, b string) bool {
	as, bs := strings.Split(a, "/"), strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		ai, aerr := strconv.Atoi(as[i])
		bi, berr := strconv.Atoi(bs[i])
		if aerr == nil && berr == nil {
			return ai < bi
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}
