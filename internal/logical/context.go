// Package logical decides semantic equivalence of workflow guard
// conditions, trigger sets, and concurrency blocks. Expressions are
// compiled to propositional formulas over a finite symbolic context
// and checked with a SAT solver; anything the encoding cannot
// express degrades to inconclusive, never to a false "safe".
package logical

import "strings"

type varKind int

const (
	varString varKind = iota
	varBool
)

type contextVar struct {
	name string
	kind varKind
}

// knownVars maps the GitHub context paths the encoder models to
// short symbolic variable names. Everything else still gets an atom,
// just a generic one derived from its path.
var knownVars = map[string]contextVar{
	"github.event_name":                             {"event_name", varString},
	"github.ref":                                    {"ref", varString},
	"github.ref_name":                               {"ref_name", varString},
	"github.repository":                             {"repository", varString},
	"github.repository_owner":                       {"repository_owner", varString},
	"github.actor":                                  {"actor", varString},
	"github.event.pull_request.head.repo.full_name": {"head_repo", varString},
	"github.event.pull_request.draft":               {"draft", varBool},
}

// resolveVar maps a context path to its symbolic variable. Unknown
// paths become their own string-valued variable so two references to
// the same unknown path stay consistent with each other.
func resolveVar(path string) contextVar {
	if v, ok := knownVars[path]; ok {
		return v
	}
	return contextVar{name: sanitizeVarName(path), kind: varString}
}

func sanitizeVarName(path string) string {
	return strings.NewReplacer(".", "_", "-", "_", "*", "any").Replace(path)
}

// forkGuardVars are the context paths a fork-prevention guard is
// allowed to constrain. A conjunct touching anything else is not a
// recognized guard.
var forkGuardVars = map[string]bool{
	"github.event.pull_request.head.repo.full_name": true,
	"github.repository":                             true,
	"github.repository_owner":                       true,
	"github.actor":                                  true,
	"github.event_name":                             true,
}
