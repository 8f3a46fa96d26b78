package selector

import "sort"

// FilterBelow returns candidates whose top edge is at or below anchor's
// bottom edge, nearest first.
func FilterBelow(candidates []*Node, anchor *Node) []*Node {
	anchorBottom := anchor.Bounds.Y + anchor.Bounds.Height
	var result []*Node
	for _, n := range candidates {
		if n.Bounds.Y >= anchorBottom {
			result = append(result, n)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Bounds.Y-anchorBottom < result[j].Bounds.Y-anchorBottom
	})
	return result
}

// FilterAbove returns candidates whose bottom edge is at or above anchor's
// top edge, nearest first.
func FilterAbove(candidates []*Node, anchor *Node) []*Node {
	anchorTop := anchor.Bounds.Y
	var result []*Node
	for _, n := range candidates {
		if n.Bounds.Y+n.Bounds.Height <= anchorTop {
			result = append(result, n)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		di := anchorTop - (result[i].Bounds.Y + result[i].Bounds.Height)
		dj := anchorTop - (result[j].Bounds.Y + result[j].Bounds.Height)
		return di < dj
	})
	return result
}

// FilterLeftOf returns candidates whose right edge is at or left of
// anchor's left edge, nearest first.
func FilterLeftOf(candidates []*Node, anchor *Node) []*Node {
	anchorLeft := anchor.Bounds.X
	var result []*Node
	for _, n := range candidates {
		if n.Bounds.X+n.Bounds.Width <= anchorLeft {
			result = append(result, n)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		di := anchorLeft - (result[i].Bounds.X + result[i].Bounds.Width)
		dj := anchorLeft - (result[j].Bounds.X + result[j].Bounds.Width)
		return di < dj
	})
	return result
}

// FilterRightOf returns candidates whose left edge is at or right of
// anchor's right edge, nearest first.
func FilterRightOf(candidates []*Node, anchor *Node) []*Node {
	anchorRight := anchor.Bounds.X + anchor.Bounds.Width
	var result []*Node
	for _, n := range candidates {
		if n.Bounds.X >= anchorRight {
			result = append(result, n)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Bounds.X-anchorRight < result[j].Bounds.X-anchorRight
	})
	return result
}

// FilterChildOf returns candidates whose bounds fall entirely within
// anchor's - a bounds-containment test, not a tree-parent test, since
// visual nesting is what spec §4.1's childOf clause scopes against.
func FilterChildOf(candidates []*Node, anchor *Node) []*Node {
	var result []*Node
	for _, n := range candidates {
		if IsInside(n.Bounds, anchor.Bounds) {
			result = append(result, n)
		}
	}
	return result
}

// FilterContainsChild returns candidates whose bounds entirely contain
// anchor's.
func FilterContainsChild(candidates []*Node, anchor *Node) []*Node {
	var result []*Node
	for _, n := range candidates {
		if IsInside(anchor.Bounds, n.Bounds) {
			result = append(result, n)
		}
	}
	return result
}

// FilterInsideOf returns candidates whose center point falls within
// anchor's bounds - visual containment, looser than FilterChildOf.
func FilterInsideOf(candidates []*Node, anchor *Node) []*Node {
	var result []*Node
	for _, n := range candidates {
		if CenterInside(n.Bounds, anchor.Bounds) {
			result = append(result, n)
		}
	}
	return result
}
