// Package yml walks decoded YAML nodes while keeping their source lines.
package yml

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type (
	Node yaml.Node
)

// Decode parses data and returns its root content node
func Decode(data []byte) (*Node, error) {
	doc := &yaml.Node{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil, fmt.Errorf("empty document")
		}
		return (*Node)(doc.Content[0]), nil
	}
	return (*Node)(doc), nil
}

// Lookup returns the value of mapping key name, or nil
func (n *Node) Lookup(name string) *Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == name {
			return (*Node)(n.Content[i+1])
		}
	}
	return nil
}

func (n *Node) Items(callback func(index int, node *Node) error) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a sequence", n.Line)
	}
	for i := 0; i < len(n.Content); i++ {
		if err := callback(i, (*Node)(n.Content[i])); err != nil {
			return err
		}
	}
	return nil
}

// Pairs visits mapping entries in document order
func (n *Node) Pairs(callback func(key string, node *Node) error) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := callback(n.Content[i].Value, (*Node)(n.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

// IsScalar reports whether n holds a single value
func (n *Node) IsScalar() bool {
	return n.Kind == yaml.ScalarNode
}

// IsBlock reports whether n is a literal or folded multi-line scalar
func (n *Node) IsBlock() bool {
	return n.Kind == yaml.ScalarNode && n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0
}

// Text returns the scalar value of n
func (n *Node) Text() (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	return n.Value, nil
}
