// Package taxonomy models a user-defined hierarchical label set as an
// ordered tree. Child order is insertion order and is preserved verbatim
// through serialization and rendering; downstream prompt text depends on
// that ordering to convey priority.
package taxonomy

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultMaxDepth bounds taxonomy depth when no explicit limit is given.
const DefaultMaxDepth = 5

// Node is a single taxonomy label with its description and ordered children.
// Each node exclusively owns its children; the structure is strictly a tree.
type Node struct {
	Label       string
	Description string

	children children
}

// Children returns the node's children in insertion order.
func (n *Node) Children() []*Node {
	return n.children.ordered
}

// children keeps sibling nodes in insertion order with label lookup.
type children struct {
	ordered []*Node
	byLabel map[string]*Node
}

func (c *children) get(label string) (*Node, bool) {
	n, ok := c.byLabel[label]
	return n, ok
}

func (c *children) add(n *Node) bool {
	if c.byLabel == nil {
		c.byLabel = make(map[string]*Node)
	}
	if _, exists := c.byLabel[n.Label]; exists {
		return false
	}
	c.byLabel[n.Label] = n
	c.ordered = append(c.ordered, n)
	return true
}

// Tree is an ordered set of top-level nodes with a bounded depth. Once
// Freeze is called (request building has begun) the tree rejects mutation.
type Tree struct {
	maxDepth int
	roots    children
	frozen   bool
}

// New creates an empty tree. A maxDepth of 0 or less selects DefaultMaxDepth.
func New(maxDepth int) *Tree {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Tree{maxDepth: maxDepth}
}

// MaxDepth returns the configured depth bound.
func (t *Tree) MaxDepth() int {
	return t.maxDepth
}

// Roots returns the top-level nodes in insertion order.
func (t *Tree) Roots() []*Node {
	return t.roots.ordered
}

// Empty reports whether the tree has no nodes.
func (t *Tree) Empty() bool {
	return len(t.roots.ordered) == 0
}

// Freeze marks the tree immutable. Called when request building begins;
// any later AddNode fails.
func (t *Tree) Freeze() {
	t.frozen = true
}

// AddNode inserts a new node under the node addressed by path (a sequence of
// labels from the root; empty path addresses the root). It fails with
// *UnknownPathError when the path does not resolve, *DuplicateLabelError
// when label already exists among the target's children, and
// *DepthExceededError when the insertion would exceed MaxDepth.
func (t *Tree) AddNode(path []string, label, description string) error {
	if t.frozen {
		return eris.New("taxonomy: tree is frozen")
	}
	if strings.TrimSpace(label) == "" {
		return eris.New("taxonomy: label must be non-empty")
	}

	target := &t.roots
	for i, step := range path {
		next, ok := target.get(step)
		if !ok {
			return &UnknownPathError{Path: path[:i+1]}
		}
		target = &next.children
	}

	if len(path)+1 > t.maxDepth {
		return &DepthExceededError{Path: path, Label: label, MaxDepth: t.maxDepth}
	}

	node := &Node{Label: label, Description: description}
	if !target.add(node) {
		return &DuplicateLabelError{Path: path, Label: label}
	}
	return nil
}

// Find returns the node addressed by path, or nil when absent.
func (t *Tree) Find(path []string) *Node {
	target := &t.roots
	var node *Node
	for _, step := range path {
		next, ok := target.get(step)
		if !ok {
			return nil
		}
		node = next
		target = &next.children
	}
	return node
}

// Render produces one line per node, insertion order preserved, with tree
// connectors proportional to depth:
//
//	Level 1 - Saws: cutting tools
//	  ├─ Level 2 - Circular Saw: blade-based
//	  │  ├─ Level 3 - Cordless: battery powered
//
// The output is deterministic for a given tree and is embedded verbatim in
// prompt text, so the format must stay stable.
func (t *Tree) Render() []string {
	var lines []string
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			lines = append(lines, renderLine(n, depth))
			walk(n.children.ordered, depth+1)
		}
	}
	walk(t.roots.ordered, 1)
	return lines
}

func renderLine(n *Node, depth int) string {
	prefix := ""
	if depth >= 2 {
		prefix = "  " + strings.Repeat("│  ", depth-2) + "├─ "
	}
	return fmt.Sprintf("%sLevel %d - %s: %s", prefix, depth, n.Label, n.Description)
}
