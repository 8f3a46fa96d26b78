package selector

import (
	"fmt"

	"github.com/flowctl/orchestrator/pkg/flow"
)

// NotFoundError reports that sel matched nothing in a hierarchy snapshot.
// It carries the description and a debug hint for the caller to surface -
// spec §4.1 leaves blocking/retrying to the caller (findElementWithTimeout);
// the algebra itself is a single synchronous pass over one snapshot.
type NotFoundError struct {
	Description string
	Hint        string
}

func (e *NotFoundError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("element not found: %s", e.Description)
	}
	return fmt.Sprintf("element not found: %s (%s)", e.Description, e.Hint)
}

// Find compiles sel, runs it once against root, and disambiguates to a
// single node. It does not poll or retry - findElementWithTimeout-style
// looping is the caller's responsibility.
func Find(root *Node, sel flow.Selector) (*Node, error) {
	pred := Compile(sel)
	candidates := pred.Filter(root, Flatten(root))
	node := Disambiguate(candidates, sel)
	if node == nil {
		return nil, &NotFoundError{Description: pred.Describe, Hint: hint(sel, candidates)}
	}
	return node, nil
}

func hint(sel flow.Selector, candidates []*Node) string {
	if len(candidates) > 0 && sel.Index != "" {
		return fmt.Sprintf("%d candidate(s) matched before the index clause, but index %s was out of range", len(candidates), sel.Index)
	}
	return "no node in the hierarchy satisfied every clause"
}
