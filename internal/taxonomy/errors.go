package taxonomy

import (
	"fmt"
	"strings"
)

// DuplicateLabelError reports an attempt to insert a label that already
// exists among the target node's children.
type DuplicateLabelError struct {
	Path  []string
	Label string
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("taxonomy: duplicate label %q under %s", e.Label, pathString(e.Path))
}

// DepthExceededError reports an insertion that would push a node below the
// tree's configured maximum depth.
type DepthExceededError struct {
	Path     []string
	Label    string
	MaxDepth int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("taxonomy: inserting %q under %s exceeds max depth %d", e.Label, pathString(e.Path), e.MaxDepth)
}

// UnknownPathError reports an insertion path that does not address an
// existing node.
type UnknownPathError struct {
	Path []string
}

func (e *UnknownPathError) Error() string {
	return fmt.Sprintf("taxonomy: path %s not found", pathString(e.Path))
}

// MalformedTaxonomyError reports a serialized document that does not match
// the nested label → {description, children} shape.
type MalformedTaxonomyError struct {
	Path   []string
	Reason string
}

func (e *MalformedTaxonomyError) Error() string {
	return fmt.Sprintf("taxonomy: malformed document at %s: %s", pathString(e.Path), e.Reason)
}

func pathString(path []string) string {
	if len(path) == 0 {
		return "root"
	}
	return strings.Join(path, " > ")
}
