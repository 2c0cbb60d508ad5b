// Package structural decides whether two workflow trees have
// compatible shape. Values below the mapping/sequence level are
// opaque: shape is the contract, except for the handful of keys
// whose value literally is structure (needs, matrix).
package structural

import (
	"strconv"

	"github.com/actsafe/actsafe/internal/workflow"
)

// EntryKind mirrors workflow.NodeKind for key-structure entries.
type EntryKind int

const (
	_ EntryKind = iota
	KindMapping
	KindSequence
	KindScalar
)

func (k EntryKind) String() string {
	switch k {
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindScalar:
		return "scalar"
	default:
		return "?"
	}
}

// Entry describes the shape of one node: mapping keys in document
// order, sequence length, or the primitive type of an opaque scalar.
type Entry struct {
	Kind       EntryKind
	Keys       []string
	Length     int
	ScalarType string
}

// KeyStructure maps slash-joined paths ("jobs/build/steps/0/run") to
// shape entries. The document root is recorded under "".
type KeyStructure map[string]Entry

// ExtractKeyStructure walks the tree once and records the shape of
// every node. Scalar values are reduced to their primitive type.
func ExtractKeyStructure(root *workflow.Node) KeyStructure {
	ks := make(KeyStructure)
	extract(root, "", ks)
	return ks
}

func extract(n *workflow.Node, path string, ks KeyStructure) {
	if n == nil {
		return
	}
	switch n.Kind {
	case workflow.Mapping:
		ks[path] = Entry{Kind: KindMapping, Keys: n.Keys()}
		for _, e := range n.Entries {
			extract(e.Value, childPath(path, e.Key), ks)
		}
	case workflow.Sequence:
		ks[path] = Entry{Kind: KindSequence, Length: len(n.Items)}
		for i, item := range n.Items {
			extract(item, childPath(path, strconv.Itoa(i)), ks)
		}
	case workflow.Scalar:
		ks[path] = Entry{Kind: KindScalar, ScalarType: n.ScalarType()}
	}
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "/" + key
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
