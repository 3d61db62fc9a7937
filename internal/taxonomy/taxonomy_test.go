package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildToolTree(t *testing.T) *Tree {
	t.Helper()
	tree := New(0)
	require.NoError(t, tree.AddNode(nil, "Saws", "cutting tools"))
	require.NoError(t, tree.AddNode([]string{"Saws"}, "Circular Saw", "blade-based"))
	require.NoError(t, tree.AddNode([]string{"Saws"}, "Jigsaw", "reciprocating blade"))
	require.NoError(t, tree.AddNode(nil, "Drills", "rotary tools"))
	return tree
}

func TestAddNode_DuplicateLabel(t *testing.T) {
	tree := buildToolTree(t)

	err := tree.AddNode(nil, "Saws", "again")
	var dup *DuplicateLabelError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Saws", dup.Label)

	err = tree.AddNode([]string{"Saws"}, "Jigsaw", "again")
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Jigsaw", dup.Label)
}

func TestAddNode_DepthExceeded(t *testing.T) {
	tree := New(2)
	require.NoError(t, tree.AddNode(nil, "A", "a"))
	require.NoError(t, tree.AddNode([]string{"A"}, "B", "b"))

	err := tree.AddNode([]string{"A", "B"}, "C", "c")
	var deep *DepthExceededError
	require.ErrorAs(t, err, &deep)
	assert.Equal(t, 2, deep.MaxDepth)
}

func TestAddNode_UnknownPath(t *testing.T) {
	tree := buildToolTree(t)

	err := tree.AddNode([]string{"Hammers"}, "Claw", "x")
	var unknown *UnknownPathError
	require.ErrorAs(t, err, &unknown)
}

func TestAddNode_EmptyLabel(t *testing.T) {
	tree := New(0)
	assert.Error(t, tree.AddNode(nil, "  ", "blank"))
}

func TestAddNode_Frozen(t *testing.T) {
	tree := buildToolTree(t)
	tree.Freeze()
	assert.Error(t, tree.AddNode(nil, "Sanders", "abrasive tools"))
}

func TestRender_OrderAndIndentation(t *testing.T) {
	tree := buildToolTree(t)
	require.NoError(t, tree.AddNode([]string{"Saws", "Circular Saw"}, "Cordless", "battery powered"))

	lines := tree.Render()
	assert.Equal(t, []string{
		"Level 1 - Saws: cutting tools",
		"  ├─ Level 2 - Circular Saw: blade-based",
		"  │  ├─ Level 3 - Cordless: battery powered",
		"  ├─ Level 2 - Jigsaw: reciprocating blade",
		"Level 1 - Drills: rotary tools",
	}, lines)
}

func TestRender_InsertionOrderNeverSorted(t *testing.T) {
	tree := New(0)
	// Deliberately out of lexical order; render must preserve it.
	require.NoError(t, tree.AddNode(nil, "Zeta", "last alphabetically, first by priority"))
	require.NoError(t, tree.AddNode(nil, "Alpha", "first alphabetically"))

	lines := tree.Render()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Zeta")
	assert.Contains(t, lines[1], "Alpha")
}

func TestFind(t *testing.T) {
	tree := buildToolTree(t)

	node := tree.Find([]string{"Saws", "Jigsaw"})
	require.NotNil(t, node)
	assert.Equal(t, "reciprocating blade", node.Description)

	assert.Nil(t, tree.Find([]string{"Saws", "Bandsaw"}))
}
