package selector

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/flowctl/orchestrator/pkg/flow"
)

// MatchesSelector reports whether n satisfies the field-level clauses of
// sel: text, id, size (with tolerance), and the enabled/selected/checked/
// focused state filters. Spatial and traits clauses are applied separately
// by Compile/apply, not here.
func MatchesSelector(n *Node, sel flow.Selector) bool {
	if sel.Text != "" && !matchesText(sel.Text, n.Text, n.ContentDesc, n.HintText) {
		return false
	}

	if sel.ID != "" && !strings.Contains(n.ID, sel.ID) {
		return false
	}

	if sel.Width > 0 || sel.Height > 0 {
		tolerance := sel.Tolerance
		if tolerance == 0 {
			tolerance = 5
		}
		if sel.Width > 0 && !withinTolerance(n.Bounds.Width, sel.Width, tolerance) {
			return false
		}
		if sel.Height > 0 && !withinTolerance(n.Bounds.Height, sel.Height, tolerance) {
			return false
		}
	}

	if sel.Enabled != nil && n.Enabled != *sel.Enabled {
		return false
	}
	if sel.Selected != nil && n.Selected != *sel.Selected {
		return false
	}
	if sel.Focused != nil && n.Focused != *sel.Focused {
		return false
	}
	if sel.Checked != nil && n.Checked != *sel.Checked {
		return false
	}

	return true
}

func withinTolerance(actual, expected, tolerance int) bool {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// matchesText checks text, contentDesc and hintText against pattern. A
// pattern containing regex metacharacters is compiled with regexp2 in
// case-insensitive, dot-matches-all, multiline mode (spec's regex clause
// semantics); otherwise it's a case-insensitive substring match.
func matchesText(pattern, text, contentDesc, hintText string) bool {
	if looksLikeRegex(pattern) {
		re, err := regexp2.Compile(pattern, regexp2.IgnoreCase|regexp2.Singleline|regexp2.Multiline)
		if err != nil {
			return containsIgnoreCase(text, pattern) ||
				containsIgnoreCase(contentDesc, pattern) ||
				containsIgnoreCase(hintText, pattern)
		}
		for _, candidate := range []string{text, contentDesc, hintText} {
			if candidate == "" {
				continue
			}
			stripped := strings.ReplaceAll(candidate, "\n", " ")
			if regexMatches(re, candidate) || regexMatches(re, stripped) || pattern == candidate || pattern == stripped {
				return true
			}
		}
		return false
	}

	return containsIgnoreCase(text, pattern) ||
		containsIgnoreCase(contentDesc, pattern) ||
		containsIgnoreCase(hintText, pattern)
}

func regexMatches(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// looksLikeRegex reports whether text contains unescaped regex
// metacharacters. A standalone period (as in "mastodon.social") is not
// treated as regex on its own.
func looksLikeRegex(text string) bool {
	metacharacters := `[](){}|^$+?*\`
	for i := 0; i < len(text); i++ {
		c := text[i]
		if i > 0 && text[i-1] == '\\' {
			continue
		}
		if strings.IndexByte(metacharacters, c) >= 0 {
			return true
		}
	}
	return false
}

// matchesTraits reports whether n carries every trait named in a
// comma-separated traits clause, matched against its class name.
func matchesTraits(n *Node, traits string) bool {
	for _, t := range strings.Split(traits, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(n.ClassName), strings.ToLower(t)) {
			return false
		}
	}
	return true
}

// parseIndex parses a selector's Index field (kept as a string for variable
// substitution upstream) into an int; ok is false if unset or unparsable.
func parseIndex(index string) (int, bool) {
	if index == "" {
		return 0, false
	}
	n, err := strconv.Atoi(index)
	if err != nil {
		return 0, false
	}
	return n, true
}
