// Package condition evaluates a flow.Condition against the current UI,
// platform, and script state.
package condition

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/flowctl/orchestrator/pkg/flow"
)

// Finder attempts to resolve sel within a single bounded attempt, returning
// whether a matching element is currently present. It must not itself retry
// or poll — polling (for notVisible) is this package's responsibility.
type Finder func(ctx context.Context, sel flow.Selector, timeout time.Duration) (bool, error)

// pollInterval is the granularity at which notVisible re-checks the
// hierarchy (spec: "as soon as a 500 ms find attempt reports not-found").
const pollInterval = 500 * time.Millisecond

// Evaluate decides the truth of cond. platform is the cached device
// platform string; scriptEval resolves a scriptExpression clause's already
// pre-evaluated string form is expected to be supplied via cond.Script
// having already been run through the script engine by the caller — this
// function only applies the truthiness table to the result string.
func Evaluate(ctx context.Context, cond flow.Condition, optional bool, timeout time.Duration, platform string, scriptResult string, find Finder) (bool, error) {
	if cond.Platform != "" && !strings.EqualFold(cond.Platform, platform) {
		return false, nil
	}

	if cond.Visible != nil {
		found, err := find(ctx, *cond.Visible, timeout)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
	}

	if cond.NotVisible != nil {
		ok, err := evaluateNotVisible(ctx, *cond.NotVisible, timeout, find)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if cond.Script != "" && !truthy(scriptResult) {
		return false, nil
	}

	return true, nil
}

// evaluateNotVisible polls at pollInterval granularity; it succeeds as soon
// as one attempt reports not-found, and fails only if the element remains
// visible for the entire window.
func evaluateNotVisible(ctx context.Context, sel flow.Selector, timeout time.Duration, find Finder) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		found, err := find(ctx, sel, pollInterval)
		if err != nil {
			return false, err
		}
		if !found {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// truthy applies the scriptExpression truthiness table: empty string,
// case-insensitive "false"/"undefined"/"null", or numeric zero are false;
// anything else is true.
func truthy(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	switch strings.ToLower(trimmed) {
	case "false", "undefined", "null":
		return false
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n != 0
	}
	return true
}

// IsEmpty reports whether cond has no clauses set (an empty condition is
// always true).
func IsEmpty(cond flow.Condition) bool {
	return cond.Platform == "" && cond.Visible == nil && cond.NotVisible == nil && cond.Script == ""
}
