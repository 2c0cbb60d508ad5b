package verify

// Mode selects which verification domains run.
type Mode string

const (
	// ModeStructural runs only the tree-shape comparison.
	ModeStructural Mode = "structural"
	// ModeLogical runs only the solver-backed semantic comparison.
	ModeLogical Mode = "logical"
	// ModeHybrid runs both; the verdict is safe only when both agree.
	ModeHybrid Mode = "hybrid"
)

func validMode(m Mode) bool {
	switch m {
	case ModeStructural, ModeLogical, ModeHybrid:
		return true
	}
	return false
}

// DomainVerdict is the outcome of one verification domain.
type DomainVerdict struct {
	IsSafe       bool     `json:"is_safe"`
	Inconclusive bool     `json:"inconclusive,omitempty"`
	Confidence   float64  `json:"confidence"`
	Issues       []string `json:"issues,omitempty"`
}

// Verdict is the combined result for one original/modified pair.
// Inconclusive means the verdict could not be decided; it is never
// reported as safe.
type Verdict struct {
	File         string         `json:"file,omitempty"`
	Mode         Mode           `json:"mode"`
	IsSafe       bool           `json:"is_safe"`
	Inconclusive bool           `json:"inconclusive,omitempty"`
	Confidence   float64        `json:"confidence"`
	Structural   *DomainVerdict `json:"structural,omitempty"`
	Logical      *DomainVerdict `json:"logical,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// Issues flattens all domain issues for display.
func (v *Verdict) Issues() []string {
	var out []string
	if v.Structural != nil {
		out = append(out, v.Structural.Issues...)
	}
	if v.Logical != nil {
		out = append(out, v.Logical.Issues...)
	}
	return out
}
