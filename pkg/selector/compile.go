package selector

import (
	"fmt"
	"strings"

	"github.com/flowctl/orchestrator/pkg/flow"
)

// Predicate is a compiled selector: given the hierarchy root and the
// current candidate set, Filter returns the surviving candidates.
// Composition is intersection - each clause narrows the set further -
// followed by the disambiguator in Disambiguate.
type Predicate struct {
	Describe string
	Filter   func(root *Node, candidates []*Node) []*Node
}

// Compile compiles sel into a Predicate. Spatial relation clauses resolve
// their anchor eagerly against root (the only place filter construction
// queries the live hierarchy); childOf is resolved iteratively outward,
// each level recursively resolving its own parent selector and scoping
// candidates to that subtree. containsChild is eager for the same reason
// resolving a single inner element; containsDescendants is lazy, composed
// as an ordinary filter function since it only needs the parent candidate's
// own subtree, not a resolved anchor node.
func Compile(sel flow.Selector) *Predicate {
	return &Predicate{
		Describe: Describe(sel),
		Filter: func(root *Node, candidates []*Node) []*Node {
			return apply(root, candidates, sel)
		},
	}
}

func apply(root *Node, candidates []*Node, sel flow.Selector) []*Node {
	result := make([]*Node, 0, len(candidates))
	for _, n := range candidates {
		if MatchesSelector(n, sel) {
			result = append(result, n)
		}
	}

	if sel.Traits != "" {
		filtered := result[:0:0]
		for _, n := range result {
			if matchesTraits(n, sel.Traits) {
				filtered = append(filtered, n)
			}
		}
		result = filtered
	}

	if sel.ChildOf != nil {
		anchor := resolveAnchor(root, *sel.ChildOf)
		if anchor == nil {
			return nil
		}
		result = FilterChildOf(result, anchor)
	}

	if sel.Below != nil {
		anchor := resolveAnchor(root, *sel.Below)
		if anchor == nil {
			return nil
		}
		result = FilterBelow(result, anchor)
	}
	if sel.Above != nil {
		anchor := resolveAnchor(root, *sel.Above)
		if anchor == nil {
			return nil
		}
		result = FilterAbove(result, anchor)
	}
	if sel.LeftOf != nil {
		anchor := resolveAnchor(root, *sel.LeftOf)
		if anchor == nil {
			return nil
		}
		result = FilterLeftOf(result, anchor)
	}
	if sel.RightOf != nil {
		anchor := resolveAnchor(root, *sel.RightOf)
		if anchor == nil {
			return nil
		}
		result = FilterRightOf(result, anchor)
	}
	if sel.ContainsChild != nil {
		anchor := resolveAnchor(root, *sel.ContainsChild)
		if anchor == nil {
			return nil
		}
		result = FilterContainsChild(result, anchor)
	}
	if sel.InsideOf != nil {
		anchor := resolveAnchor(root, *sel.InsideOf)
		if anchor == nil {
			return nil
		}
		result = FilterInsideOf(result, anchor)
	}
	if len(sel.ContainsDescendants) > 0 {
		all := Flatten(root)
		filtered := result[:0:0]
		for _, n := range result {
			if containsAllDescendants(n, all, sel.ContainsDescendants) {
				filtered = append(filtered, n)
			}
		}
		result = filtered
	}

	return result
}

// resolveAnchor resolves a relative selector's anchor against root,
// querying the live hierarchy eagerly and returning the single
// disambiguated node, or nil if nothing matches.
func resolveAnchor(root *Node, sel flow.Selector) *Node {
	all := Flatten(root)
	matches := apply(root, all, sel)
	return Disambiguate(matches, sel)
}

func containsAllDescendants(parent *Node, all []*Node, descendants []*flow.Selector) bool {
	for _, descSel := range descendants {
		found := false
		for _, n := range all {
			if IsInside(n.Bounds, parent.Bounds) && MatchesSelector(n, *descSel) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Disambiguate picks a single node from candidates per spec §4.1: if
// index is set, the i-th candidate in document order; otherwise the first
// clickable candidate, or the first candidate overall if none is
// clickable. Returns nil if candidates is empty or index is out of range.
func Disambiguate(candidates []*Node, sel flow.Selector) *Node {
	if len(candidates) == 0 {
		return nil
	}
	if idx, ok := parseIndex(sel.Index); ok {
		if idx < 0 || idx >= len(candidates) {
			return nil
		}
		return candidates[idx]
	}
	for _, n := range candidates {
		if n.Clickable {
			return n
		}
	}
	return candidates[0]
}

// Describe renders a human-readable description of sel for diagnostics -
// "element not found" failures carry this alongside a hierarchy snapshot.
func Describe(sel flow.Selector) string {
	var parts []string
	if sel.Text != "" {
		parts = append(parts, fmt.Sprintf("text=%q", sel.Text))
	}
	if sel.ID != "" {
		parts = append(parts, fmt.Sprintf("id=%q", sel.ID))
	}
	if sel.CSS != "" {
		parts = append(parts, fmt.Sprintf("css=%q", sel.CSS))
	}
	if sel.Traits != "" {
		parts = append(parts, fmt.Sprintf("traits=%q", sel.Traits))
	}
	if sel.Index != "" {
		parts = append(parts, fmt.Sprintf("index=%s", sel.Index))
	}
	if sel.ChildOf != nil {
		parts = append(parts, fmt.Sprintf("childOf(%s)", Describe(*sel.ChildOf)))
	}
	if sel.Below != nil {
		parts = append(parts, fmt.Sprintf("below(%s)", Describe(*sel.Below)))
	}
	if sel.Above != nil {
		parts = append(parts, fmt.Sprintf("above(%s)", Describe(*sel.Above)))
	}
	if sel.LeftOf != nil {
		parts = append(parts, fmt.Sprintf("leftOf(%s)", Describe(*sel.LeftOf)))
	}
	if sel.RightOf != nil {
		parts = append(parts, fmt.Sprintf("rightOf(%s)", Describe(*sel.RightOf)))
	}
	if sel.ContainsChild != nil {
		parts = append(parts, fmt.Sprintf("containsChild(%s)", Describe(*sel.ContainsChild)))
	}
	if sel.InsideOf != nil {
		parts = append(parts, fmt.Sprintf("insideOf(%s)", Describe(*sel.InsideOf)))
	}
	if len(parts) == 0 {
		return "<empty selector>"
	}
	return strings.Join(parts, ", ")
}
