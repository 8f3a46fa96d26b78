// Package selector implements the selector-and-filter algebra: compiling a
// flow.Selector into a (description, predicate) pair that narrows a set of
// candidate view-hierarchy nodes down to the elements it describes.
//
// It is protocol-agnostic - it operates on the generic Node tree below, not
// on any one driver's native element representation, so the same algebra
// composes spatial relations (below/above/leftOf/rightOf/childOf/
// containsChild/containsDescendants) and a single clickable-first/index
// disambiguator regardless of whether the hierarchy came from a UiAutomator
// XML dump, an Appium page source, or a synthetic mock tree.
package selector

import "github.com/flowctl/orchestrator/pkg/core"

// Node is a single element in a view hierarchy, independent of the wire
// format (Android XML, iOS XCUITest XML, or a hand-built JSON tree) it was
// parsed from.
type Node struct {
	ID          string
	Text        string
	ContentDesc string
	HintText    string
	ClassName   string
	Bounds      core.Bounds

	Enabled   bool
	Selected  bool
	Checked   bool
	Focused   bool
	Clickable bool
	Scrollable bool

	Depth    int
	Parent   *Node
	Children []*Node
}

// Flatten returns every node in root's subtree (root included) in
// depth-first document order, with Depth and Parent populated relative to
// root - the traversal order spatial disambiguation (DeepestMatchingElement,
// childOf) relies on.
func Flatten(root *Node) []*Node {
	if root == nil {
		return nil
	}
	var out []*Node
	var walk func(n *Node, depth int, parent *Node)
	walk = func(n *Node, depth int, parent *Node) {
		n.Depth = depth
		n.Parent = parent
		out = append(out, n)
		for _, c := range n.Children {
			walk(c, depth+1, n)
		}
	}
	walk(root, 0, nil)
	return out
}

// IsInside reports whether inner's bounds fall entirely within outer's.
func IsInside(inner, outer core.Bounds) bool {
	return inner.X >= outer.X &&
		inner.Y >= outer.Y &&
		inner.X+inner.Width <= outer.X+outer.Width &&
		inner.Y+inner.Height <= outer.Y+outer.Height
}

// CenterInside reports whether inner's center point falls within outer's
// bounds - visual containment, looser than IsInside's full-bounds test.
func CenterInside(inner, outer core.Bounds) bool {
	cx := inner.X + inner.Width/2
	cy := inner.Y + inner.Height/2
	return cx >= outer.X && cx <= outer.X+outer.Width &&
		cy >= outer.Y && cy <= outer.Y+outer.Height
}
