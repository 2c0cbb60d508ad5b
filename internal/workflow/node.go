package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeKind classifies a node in the workflow tree.
type NodeKind int

const (
	_ NodeKind = iota
	// Mapping is a key/value node with document-order keys.
	Mapping
	// Sequence is an ordered list node.
	Sequence
	// Scalar is a leaf value node.
	Scalar
)

func (k NodeKind) String() string {
	switch k {
	case Mapping:
		return "mapping"
	case Sequence:
		return "sequence"
	case Scalar:
		return "scalar"
	default:
		return "?"
	}
}

// Node is an order-preserving workflow tree node. Mapping keys keep
// their document order because key order is compared as structural
// evidence downstream.
type Node struct {
	Kind    NodeKind
	Entries []MapEntry // Mapping only, in document order
	Items   []*Node    // Sequence only
	Value   string     // Scalar only, raw text
	Tag     string     // Scalar only, resolved YAML tag (!!str, !!int, ...)
}

// MapEntry is one ordered key/value pair of a Mapping node.
type MapEntry struct {
	Key   string
	Value *Node
}

// Get returns the value for key, or nil when the node is not a
// mapping or the key is absent.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != Mapping {
		return nil
	}
	for _, e := range n.Entries {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// Keys returns the mapping keys in document order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != Mapping {
		return nil
	}
	keys := make([]string, len(n.Entries))
	for i, e := range n.Entries {
		keys[i] = e.Key
	}
	return keys
}

// ScalarType returns the primitive type name of a scalar ("str",
// "int", "bool", "float", "null") and "" for non-scalars.
func (n *Node) ScalarType() string {
	if n == nil || n.Kind != Scalar {
		return ""
	}
	switch n.Tag {
	case "!!str":
		return "str"
	case "!!int":
		return "int"
	case "!!bool":
		return "bool"
	case "!!float":
		return "float"
	case "!!null":
		return "null"
	default:
		return "str"
	}
}

// Equal reports deep equality of two subtrees, including mapping key
// order and sequence order.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Kind != other.Kind {
		return false
	}
	switch n.Kind {
	case Mapping:
		if len(n.Entries) != len(other.Entries) {
			return false
		}
		for i := range n.Entries {
			if n.Entries[i].Key != other.Entries[i].Key {
				return false
			}
			if !n.Entries[i].Value.Equal(other.Entries[i].Value) {
				return false
			}
		}
		return true
	case Sequence:
		if len(n.Items) != len(other.Items) {
			return false
		}
		for i := range n.Items {
			if !n.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	default:
		return n.Value == other.Value
	}
}

// StringValues returns the scalar values of a sequence node, or the
// single value of a scalar node. Useful for scalar-or-list shorthand
// fields such as needs and branches.
func (n *Node) StringValues() []string {
	switch {
	case n == nil:
		return nil
	case n.Kind == Scalar:
		return []string{n.Value}
	case n.Kind == Sequence:
		vals := make([]string, 0, len(n.Items))
		for _, item := range n.Items {
			if item.Kind == Scalar {
				vals = append(vals, item.Value)
			}
		}
		return vals
	default:
		return nil
	}
}

func fromYAML(y *yaml.Node) (*Node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return &Node{Kind: Mapping}, nil
		}
		return fromYAML(y.Content[0])
	case yaml.AliasNode:
		return fromYAML(y.Alias)
	case yaml.MappingNode:
		n := &Node{Kind: Mapping, Entries: make([]MapEntry, 0, len(y.Content)/2)}
		for i := 0; i+1 < len(y.Content); i += 2 {
			val, err := fromYAML(y.Content[i+1])
			if err != nil {
				return nil, err
			}
			n.Entries = append(n.Entries, MapEntry{Key: y.Content[i].Value, Value: val})
		}
		return n, nil
	case yaml.SequenceNode:
		n := &Node{Kind: Sequence, Items: make([]*Node, 0, len(y.Content))}
		for _, c := range y.Content {
			item, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, item)
		}
		return n, nil
	case yaml.ScalarNode:
		return &Node{Kind: Scalar, Value: y.Value, Tag: y.ShortTag()}, nil
	default:
		return nil, fmt.Errorf("unsupported yaml node kind %v at line %d", y.Kind, y.Line)
	}
}

func scalarNode(value string) *Node {
	return &Node{Kind: Scalar, Value: value, Tag: "!!str"}
}
