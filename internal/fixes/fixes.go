// Package fixes names the repair categories a caller may permit.
// A verifier only tolerates a structural or logical delta when the
// matching tag is present in the permitted set.
package fixes

import "fmt"

const (
	// TokenPermissions permits adding a permissions block
	// (workflow or job level), including expanding a scalar
	// permissions value into a structured map.
	TokenPermissions = "token-permissions"

	// JobTimeout permits adding a timeout-minutes field to jobs
	// and steps.
	JobTimeout = "job-timeout"

	// ConcurrencyControl permits adding a concurrency block where
	// none existed.
	ConcurrencyControl = "concurrency-control"

	// ForkPrevention permits strengthening a job or step if
	// condition with a repository/owner guard.
	ForkPrevention = "fork-prevention"

	// PathFilter permits adding paths or paths-ignore filters to a
	// trigger.
	PathFilter = "path-filter"

	// ContinueOnError permits adding a continue-on-error field.
	ContinueOnError = "continue-on-error"
)

var known = map[string]bool{
	TokenPermissions:   true,
	JobTimeout:         true,
	ConcurrencyControl: true,
	ForkPrevention:     true,
	PathFilter:         true,
	ContinueOnError:    true,
}

// Set is a permitted-fix set keyed by tag.
type Set map[string]bool

// NewSet builds a Set from tag names. Unknown tags are rejected so a
// typo in configuration cannot silently permit nothing.
func NewSet(tags ...string) (Set, error) {
	s := make(Set, len(tags))
	for _, tag := range tags {
		if !known[tag] {
			return nil, fmt.Errorf("unknown fix tag %q", tag)
		}
		s[tag] = true
	}
	return s, nil
}

// All returns a set containing every known tag.
func All() Set {
	s := make(Set, len(known))
	for tag := range known {
		s[tag] = true
	}
	return s
}

// Has reports whether tag is permitted. A nil set permits nothing.
func (s Set) Has(tag string) bool {
	return s != nil && s[tag]
}

// Tags returns the tags in the set.
func (s Set) Tags() []string {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	return tags
}
