package structural

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/actsafe/actsafe/internal/fixes"
)

// ChangeKind classifies a structural delta against the rule table.
type ChangeKind int

const (
	_ ChangeKind = iota
	ChangeAddition
	ChangeRemoval
	ChangeTypeChange
	ChangeValueRewrite
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAddition:
		return "addition"
	case ChangeRemoval:
		return "removal"
	case ChangeTypeChange:
		return "type-change"
	case ChangeValueRewrite:
		return "value-rewrite"
	default:
		return "?"
	}
}

// Rule permits one kind of delta on paths matching a glob pattern.
// An empty Tag means the delta is universally safe; otherwise the
// rule only applies when its tag is in the permitted-fix set.
type Rule struct {
	PathPattern string
	Kind        ChangeKind
	Tag         string
}

// RuleSet is the declarative allow-list evaluated by a single
// matcher, replacing scattered per-call-site string matching.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet builds a rule set from explicit rules.
func NewRuleSet(rules []Rule) RuleSet {
	return RuleSet{rules: rules}
}

// DefaultRules is the canonical allow-list: the smell-fix deltas the
// repair pipeline is known to produce, plus universally safe
// metadata (step names, env, stray timeout removal). Scalar value
// respellings that keep the primitive type, such as a
// workflow_dispatch input type of str becoming string, need no rule:
// scalar values are opaque to the comparison.
func DefaultRules() RuleSet {
	return RuleSet{rules: []Rule{
		{PathPattern: "**/permissions", Kind: ChangeAddition, Tag: fixes.TokenPermissions},
		{PathPattern: "**/permissions/**", Kind: ChangeAddition, Tag: fixes.TokenPermissions},
		{PathPattern: "**/permissions", Kind: ChangeTypeChange, Tag: fixes.TokenPermissions},
		{PathPattern: "permissions", Kind: ChangeAddition, Tag: fixes.TokenPermissions},
		{PathPattern: "permissions/**", Kind: ChangeAddition, Tag: fixes.TokenPermissions},
		{PathPattern: "permissions", Kind: ChangeTypeChange, Tag: fixes.TokenPermissions},

		{PathPattern: "**/timeout-minutes", Kind: ChangeAddition, Tag: fixes.JobTimeout},
		{PathPattern: "**/timeout-minutes", Kind: ChangeRemoval},

		{PathPattern: "concurrency", Kind: ChangeAddition, Tag: fixes.ConcurrencyControl},
		{PathPattern: "concurrency/**", Kind: ChangeAddition, Tag: fixes.ConcurrencyControl},
		{PathPattern: "jobs/*/concurrency", Kind: ChangeAddition, Tag: fixes.ConcurrencyControl},
		{PathPattern: "jobs/*/concurrency/**", Kind: ChangeAddition, Tag: fixes.ConcurrencyControl},

		{PathPattern: "jobs/*/if", Kind: ChangeAddition, Tag: fixes.ForkPrevention},
		{PathPattern: "jobs/*/steps/*/if", Kind: ChangeAddition, Tag: fixes.ForkPrevention},

		{PathPattern: "on/*/paths", Kind: ChangeAddition, Tag: fixes.PathFilter},
		{PathPattern: "on/*/paths/**", Kind: ChangeAddition, Tag: fixes.PathFilter},
		{PathPattern: "on/*/paths-ignore", Kind: ChangeAddition, Tag: fixes.PathFilter},
		{PathPattern: "on/*/paths-ignore/**", Kind: ChangeAddition, Tag: fixes.PathFilter},

		{PathPattern: "**/continue-on-error", Kind: ChangeAddition, Tag: fixes.ContinueOnError},

		// Universally safe metadata.
		{PathPattern: "jobs/*/steps/*/name", Kind: ChangeAddition},
		{PathPattern: "jobs/*/steps/*/name", Kind: ChangeRemoval},
		{PathPattern: "**/env", Kind: ChangeAddition},
		{PathPattern: "**/env/**", Kind: ChangeAddition},
	}}
}

// Allows reports whether a delta of the given kind at path matches a
// rule whose tag is active (or universal).
func (rs RuleSet) Allows(path string, kind ChangeKind, active fixes.Set) bool {
	for _, r := range rs.rules {
		if r.Kind != kind {
			continue
		}
		if r.Tag != "" && !active.Has(r.Tag) {
			continue
		}
		if ok, err := doublestar.Match(r.PathPattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
