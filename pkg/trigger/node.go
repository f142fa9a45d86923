package trigger

import "slices"

// Node is a minimal Element for hosts that describe clicks as a chain of
// selectors, innermost first.
type Node struct {
	Selectors []string
	Up        *Node
}

// Path builds a Node chain from the clicked element outwards. Each entry
// lists the selectors that element matches.
func Path(levels ...[]string) *Node {
	var root *Node
	for i := len(levels) - 1; i >= 0; i-- {
		root = &Node{Selectors: levels[i], Up: root}
	}
	return root
}

func (n *Node) Matches(selector string) bool {
	return n != nil && slices.Contains(n.Selectors, selector)
}

func (n *Node) Parent() Element {
	if n == nil || n.Up == nil {
		return nil
	}
	return n.Up
}
