package structural

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RewriteRule canonicalizes one known-safe run-command rewrite. Both
// the deprecated and the replacement spelling of a command map to
// the same canonical text, so a repair that only applies the rewrite
// produces an identical fingerprint.
type RewriteRule struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`

	re *regexp.Regexp
}

// RewriteTable holds the recognized safe rewrites. The table is
// external configuration; DefaultRewrites carries the known
// deprecated-output-syntax replacements as the built-in default.
type RewriteTable struct {
	rules []RewriteRule
}

type rewriteConfig struct {
	Rules []RewriteRule `yaml:"rules"`
}

// DefaultRewrites covers the deprecated workflow-command syntax that
// repair pipelines routinely replace.
func DefaultRewrites() *RewriteTable {
	t, err := NewRewriteTable([]RewriteRule{
		{
			Name:        "set-output",
			Pattern:     `echo\s+"?::set-output\s+name=([\w-]+)::(.*?)"?\s*$`,
			Replacement: `echo "$1=$2" >> $$GITHUB_OUTPUT`,
		},
		{
			Name:        "set-env",
			Pattern:     `echo\s+"?::set-env\s+name=([\w-]+)::(.*?)"?\s*$`,
			Replacement: `echo "$1=$2" >> $$GITHUB_ENV`,
		},
		{
			Name:        "add-path",
			Pattern:     `echo\s+"?::add-path::(.*?)"?\s*$`,
			Replacement: `echo "$1" >> $$GITHUB_PATH`,
		},
	})
	if err != nil {
		panic(err) // built-in patterns must compile
	}
	return t
}

// NewRewriteTable compiles the rule patterns. Patterns are applied
// per line of the run body.
func NewRewriteTable(rules []RewriteRule) (*RewriteTable, error) {
	t := &RewriteTable{rules: make([]RewriteRule, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rewrite rule %q: %w", r.Name, err)
		}
		r.re = re
		t.rules = append(t.rules, r)
	}
	return t, nil
}

// LoadRewrites reads a rewrite table from a YAML file.
func LoadRewrites(path string) (*RewriteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg rewriteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rewrite rules %s: %w", path, err)
	}
	return NewRewriteTable(cfg.Rules)
}

// Canonicalize normalizes a run body for fingerprinting: comments
// stripped, safe rewrites applied, whitespace collapsed.
func (t *RewriteTable) Canonicalize(body string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		for _, r := range t.rules {
			line = r.re.ReplaceAllString(line, r.Replacement)
		}
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
