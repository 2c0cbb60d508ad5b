// Package workflow models CI workflow configuration files as an
// order-preserving typed tree. Mapping key order and sequence order
// are kept intact because both are load-bearing for structural
// comparison.
package workflow

// Workflow is the root of a parsed workflow document. Jobs keep
// their insertion order.
type Workflow struct {
	Name        string
	Triggers    []Trigger
	Permissions *Node
	Concurrency *Node
	Jobs        []Job

	// Root is the normalized node tree the typed model was built
	// from. Structural comparison walks this tree directly.
	Root *Node
}

// Job returns the job with the given id, or nil.
func (w *Workflow) Job(id string) *Job {
	for i := range w.Jobs {
		if w.Jobs[i].ID == id {
			return &w.Jobs[i]
		}
	}
	return nil
}

// Trigger is one entry of the `on:` section after shorthand
// normalization: `on: push` and `on: [push]` both become a single
// Trigger{Event: "push"} with an empty config.
type Trigger struct {
	Event          string
	Branches       []string
	BranchesIgnore []string
	Paths          []string
	PathsIgnore    []string
	Config         *Node // full filter mapping, may be nil
}

// Job is a single workflow job.
type Job struct {
	ID          string
	RunsOn      *Node
	If          string
	Needs       []string // normalized from scalar-or-list, order kept
	Permissions *Node
	Concurrency *Node
	Timeout     string
	Steps       []Step
	Matrix      *Node // strategy.matrix mapping, may be nil
}

// Step is a single step of a job. Exactly one of Uses or Run is
// expected to be set in a well-formed workflow; the parser does not
// enforce this so that malformed repairs can still be compared.
type Step struct {
	Name string
	ID   string
	If   string
	Uses string
	Run  string
	With *Node
	Env  *Node
}

// IsAction reports whether the step invokes an action reference.
func (s Step) IsAction() bool { return s.Uses != "" }

func buildWorkflow(root *Node) *Workflow {
	w := &Workflow{Root: root}
	if name := root.Get("name"); name != nil && name.Kind == Scalar {
		w.Name = name.Value
	}
	w.Triggers = buildTriggers(root.Get("on"))
	w.Permissions = root.Get("permissions")
	w.Concurrency = root.Get("concurrency")

	jobs := root.Get("jobs")
	if jobs == nil || jobs.Kind != Mapping {
		return w
	}
	for _, e := range jobs.Entries {
		w.Jobs = append(w.Jobs, buildJob(e.Key, e.Value))
	}
	return w
}

func buildTriggers(on *Node) []Trigger {
	if on == nil || on.Kind != Mapping {
		return nil
	}
	triggers := make([]Trigger, 0, len(on.Entries))
	for _, e := range on.Entries {
		t := Trigger{Event: e.Key}
		if cfg := e.Value; cfg != nil && cfg.Kind == Mapping {
			t.Config = cfg
			t.Branches = cfg.Get("branches").StringValues()
			t.BranchesIgnore = cfg.Get("branches-ignore").StringValues()
			t.Paths = cfg.Get("paths").StringValues()
			t.PathsIgnore = cfg.Get("paths-ignore").StringValues()
		}
		triggers = append(triggers, t)
	}
	return triggers
}

func buildJob(id string, n *Node) Job {
	job := Job{
		ID:          id,
		RunsOn:      n.Get("runs-on"),
		Permissions: n.Get("permissions"),
		Concurrency: n.Get("concurrency"),
	}
	if cond := n.Get("if"); cond != nil && cond.Kind == Scalar {
		job.If = cond.Value
	}
	job.Needs = n.Get("needs").StringValues()
	if timeout := n.Get("timeout-minutes"); timeout != nil && timeout.Kind == Scalar {
		job.Timeout = timeout.Value
	}
	if strategy := n.Get("strategy"); strategy != nil {
		job.Matrix = strategy.Get("matrix")
	}
	if steps := n.Get("steps"); steps != nil && steps.Kind == Sequence {
		job.Steps = make([]Step, 0, len(steps.Items))
		for _, item := range steps.Items {
			job.Steps = append(job.Steps, buildStep(item))
		}
	}
	return job
}

func buildStep(n *Node) Step {
	step := Step{
		With: n.Get("with"),
		Env:  n.Get("env"),
	}
	if v := n.Get("name"); v != nil && v.Kind == Scalar {
		step.Name = v.Value
	}
	if v := n.Get("id"); v != nil && v.Kind == Scalar {
		step.ID = v.Value
	}
	if v := n.Get("if"); v != nil && v.Kind == Scalar {
		step.If = v.Value
	}
	if v := n.Get("uses"); v != nil && v.Kind == Scalar {
		step.Uses = v.Value
	}
	if v := n.Get("run"); v != nil && v.Kind == Scalar {
		step.Run = v.Value
	}
	return step
}
