package structural

import (
	"strings"

	"github.com/actsafe/actsafe/internal/workflow"
)

// Fingerprint computes a position-independent identity for a step:
// for action steps, the action name without its version pin; for run
// steps, the canonicalized command body. Cosmetic value changes
// (version bumps, safe rewrites, comments) do not change the
// fingerprint, so reordering can be told apart from editing.
func Fingerprint(s workflow.Step, rewrites *RewriteTable) string {
	if s.IsAction() {
		return "uses:" + actionName(s.Uses)
	}
	if s.Run != "" {
		return "run:" + rewrites.Canonicalize(s.Run)
	}
	return "other:" + s.Name
}

// actionName strips the @ref pin from an action reference.
func actionName(uses string) string {
	if i := strings.Index(uses, "@"); i >= 0 {
		return uses[:i]
	}
	return uses
}

// isVersionBump reports whether two action references name the same
// action, differing at most in the pinned ref. Version bumps are
// always permitted without an enabling tag.
func isVersionBump(origUses, modUses string) bool {
	return actionName(origUses) == actionName(modUses)
}

func sameFingerprintMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, fp := range a {
		counts[fp]++
	}
	for _, fp := range b {
		if counts[fp] == 0 {
			return false
		}
		counts[fp]--
	}
	return true
}
