package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseError reports malformed workflow input. It is a recoverable
// per-file condition: batch callers record it and continue.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse workflow: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse turns workflow YAML text into a Workflow. Shorthand forms
// are normalized so downstream comparison sees one canonical shape:
//
//	on: push          -> on: {push: {}}
//	on: [push, pr]    -> on: {push: {}, pr: {}}
//	needs: build      -> needs: [build]
//
// Comments and formatting are not preserved; there is no round-trip
// requirement.
func Parse(text []byte) (*Workflow, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	root, err := fromYAML(&doc)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if root.Kind != Mapping {
		return nil, &ParseError{Err: fmt.Errorf("document root is a %s, expected a mapping", root.Kind)}
	}
	normalize(root)
	return buildWorkflow(root), nil
}

// normalize rewrites shorthand forms in place on the node tree. The
// structural verifier compares node trees directly, so normalization
// has to happen below the typed model as well.
func normalize(root *Node) {
	for i, e := range root.Entries {
		if e.Key == "on" {
			root.Entries[i].Value = normalizeTriggers(e.Value)
		}
	}
	jobs := root.Get("jobs")
	if jobs == nil || jobs.Kind != Mapping {
		return
	}
	for _, je := range jobs.Entries {
		job := je.Value
		if job == nil || job.Kind != Mapping {
			continue
		}
		for i, e := range job.Entries {
			if e.Key == "needs" && e.Value != nil && e.Value.Kind == Scalar {
				job.Entries[i].Value = &Node{Kind: Sequence, Items: []*Node{e.Value}}
			}
		}
	}
}

func normalizeTriggers(on *Node) *Node {
	if on == nil {
		return nil
	}
	switch on.Kind {
	case Scalar:
		return &Node{Kind: Mapping, Entries: []MapEntry{
			{Key: on.Value, Value: &Node{Kind: Mapping}},
		}}
	case Sequence:
		norm := &Node{Kind: Mapping, Entries: make([]MapEntry, 0, len(on.Items))}
		for _, item := range on.Items {
			if item.Kind != Scalar {
				continue
			}
			norm.Entries = append(norm.Entries, MapEntry{Key: item.Value, Value: &Node{Kind: Mapping}})
		}
		return norm
	default:
		// Filtered mapping form; event configs stay as written,
		// except `on: {push:}` where the config is an explicit null.
		for i, e := range on.Entries {
			if e.Value != nil && e.Value.Kind == Scalar && e.Value.Tag == "!!null" {
				on.Entries[i].Value = &Node{Kind: Mapping}
			}
		}
		return on
	}
}
