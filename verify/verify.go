// Package verify is the front door: it parses an original and a
// modified workflow, runs the configured verification domains, and
// combines their outcomes into one verdict.
package verify

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/actsafe/actsafe/internal/fixes"
	"github.com/actsafe/actsafe/internal/logical"
	"github.com/actsafe/actsafe/internal/structural"
	"github.com/actsafe/actsafe/internal/workflow"
)

// ConfigurationError reports invalid verifier configuration, such as
// an unknown fix tag or an unknown mode. It is distinct from a
// verification verdict: bad configuration never yields "unsafe", it
// yields an error.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

// Default domain weights for hybrid confidence.
const (
	DefaultStructuralWeight = 0.6
	DefaultLogicalWeight    = 0.4
)

// Options configures a Verifier.
type Options struct {
	Mode           Mode
	PermittedFixes []string
	// StrictMode disables every permitted-fix allowance; only exact
	// equivalence passes. Permitted fixes may still be listed, they
	// just stop excusing anything.
	StrictMode       bool
	SolverTimeout    time.Duration
	StructuralWeight float64
	LogicalWeight    float64
	Rules            *structural.RuleSet
	Rewrites         *structural.RewriteTable
}

// Verifier runs verification with a fixed configuration. It is safe
// for concurrent use; solver state is created fresh per invocation.
type Verifier struct {
	opts       Options
	active     fixes.Set
	structural *structural.Verifier
	logger     *zap.Logger
}

// New validates the configuration and builds a verifier.
func New(opts Options, logger *zap.Logger) (*Verifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if !validMode(opts.Mode) {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown mode %q", opts.Mode)}
	}
	active, err := fixes.NewSet(opts.PermittedFixes...)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}
	if opts.StructuralWeight == 0 {
		opts.StructuralWeight = DefaultStructuralWeight
	}
	if opts.LogicalWeight == 0 {
		opts.LogicalWeight = DefaultLogicalWeight
	}
	if opts.StructuralWeight < 0 || opts.LogicalWeight < 0 {
		return nil, &ConfigurationError{Reason: "domain weights must be non-negative"}
	}

	return &Verifier{
		opts:   opts,
		active: active,
		structural: structural.NewVerifier(structural.Config{
			Rules:    opts.Rules,
			Rewrites: opts.Rewrites,
		}, logger),
		logger: logger,
	}, nil
}

// Verify compares original and modified workflow texts.
func (v *Verifier) Verify(ctx context.Context, origText, modText []byte) (*Verdict, error) {
	orig, err := workflow.Parse(origText)
	if err != nil {
		return nil, fmt.Errorf("original: %w", err)
	}
	mod, err := workflow.Parse(modText)
	if err != nil {
		return nil, fmt.Errorf("modified: %w", err)
	}
	return v.verifyParsed(ctx, orig, mod), nil
}

// VerifyFiles is Verify over file paths.
func (v *Verifier) VerifyFiles(ctx context.Context, origPath, modPath string) (*Verdict, error) {
	origText, err := os.ReadFile(origPath)
	if err != nil {
		return nil, err
	}
	modText, err := os.ReadFile(modPath)
	if err != nil {
		return nil, err
	}
	verdict, err := v.Verify(ctx, origText, modText)
	if verdict != nil {
		verdict.File = modPath
	}
	return verdict, err
}

func (v *Verifier) verifyParsed(ctx context.Context, orig, mod *workflow.Workflow) *Verdict {
	verdict := &Verdict{Mode: v.opts.Mode}

	// Strict mode verifies against the empty allowance set; only the
	// universally safe rules remain in play.
	active := v.active
	if v.opts.StrictMode {
		active = fixes.Set{}
	}

	if v.opts.Mode == ModeStructural || v.opts.Mode == ModeHybrid {
		res := v.structural.Verify(orig, mod, active)
		dv := &DomainVerdict{IsSafe: res.IsSafe, Confidence: 1.0}
		for _, issue := range res.Issues {
			dv.Issues = append(dv.Issues, issue.String())
		}
		verdict.Structural = dv
	}

	if v.opts.Mode == ModeLogical || v.opts.Mode == ModeHybrid {
		lv := logical.NewVerifier(logical.Config{
			Strict:        v.opts.StrictMode,
			SolverTimeout: v.opts.SolverTimeout,
		}, v.logger)
		res := lv.Verify(ctx, orig, mod, active)
		dv := &DomainVerdict{
			IsSafe:       res.IsSafe,
			Inconclusive: res.Inconclusive,
			Confidence:   logicalConfidence(res),
		}
		for _, f := range res.Findings {
			dv.Issues = append(dv.Issues, f.String())
		}
		verdict.Logical = dv
		verdict.Warnings = append(verdict.Warnings, res.Warnings...)
	}

	v.combine(verdict)
	return verdict
}

// combine folds the domain verdicts into the top-level one. Safe
// requires every domain that ran to be safe; any inconclusive domain
// makes the whole verdict inconclusive rather than safe.
func (v *Verifier) combine(verdict *Verdict) {
	safe := true
	var weightSum, confSum float64

	if verdict.Structural != nil {
		safe = safe && verdict.Structural.IsSafe
		weightSum += v.opts.StructuralWeight
		confSum += v.opts.StructuralWeight * verdict.Structural.Confidence
	}
	if verdict.Logical != nil {
		safe = safe && verdict.Logical.IsSafe
		verdict.Inconclusive = verdict.Inconclusive || verdict.Logical.Inconclusive
		weightSum += v.opts.LogicalWeight
		confSum += v.opts.LogicalWeight * verdict.Logical.Confidence
	}

	verdict.IsSafe = safe && !verdict.Inconclusive
	if weightSum > 0 {
		verdict.Confidence = confSum / weightSum
	}
}

// logicalConfidence discounts the logical verdict for every clause
// the encoding could not fully model.
func logicalConfidence(res logical.Result) float64 {
	if res.Inconclusive {
		return 0
	}
	conf := 1.0 - 0.1*float64(len(res.Warnings))
	if conf < 0.5 {
		conf = 0.5
	}
	return conf
}
