// Package scriptengine adapts pkg/jsengine to the Script Engine Adapter
// contract: variable expansion, scoped script execution, and condition
// evaluation against a core.Driver, independent of any particular step
// interpreter.
package scriptengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flowctl/orchestrator/pkg/condition"
	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
	"github.com/flowctl/orchestrator/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables.
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// Engine handles JavaScript execution, variable expansion, and condition
// evaluation for one run's worth of flows.
type Engine struct {
	js        *jsengine.Engine
	variables map[string]string
	flowDir   string

	logs []string
}

// New creates a script engine with its console output wired into an
// internal buffer retrievable via DrainLogs.
func New() *Engine {
	e := &Engine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
	e.js.OnLogMessage(func(msg string) {
		e.logs = append(e.logs, msg)
	})
	return e
}

// Close cleans up the underlying JS runtime.
func (e *Engine) Close() {
	if e.js != nil {
		e.js.Close()
	}
}

// SetFlowDir sets the current flow directory for relative path resolution.
func (e *Engine) SetFlowDir(dir string) {
	e.flowDir = dir
}

// SetVariable sets a variable in both the Go map and the JS engine.
func (e *Engine) SetVariable(name, value string) {
	e.variables[name] = value
	e.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (e *Engine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// ImportSystemEnv imports process environment variables whose names look
// like ALL_CAPS identifiers into the script engine.
func (e *Engine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 && envVarPattern.MatchString(parts[0]) {
			e.SetVariable(parts[0], parts[1])
		}
	}
}

// GetVariable returns a variable value.
func (e *Engine) GetVariable(name string) string {
	return e.variables[name]
}

// SetPlatform sets the platform exposed to scripts as flow.platform.
func (e *Engine) SetPlatform(platform string) {
	e.js.SetPlatform(platform)
}

// SetCopiedText sets the value exposed as flow.copiedText.
func (e *Engine) SetCopiedText(text string) {
	e.js.SetCopiedText(text)
}

// GetCopiedText returns the stored copiedText value.
func (e *Engine) GetCopiedText() string {
	return e.js.GetCopiedText()
}

// GetOutput returns the JS output object's current contents.
func (e *Engine) GetOutput() map[string]interface{} {
	return e.js.GetOutput()
}

// SyncOutputToVariables copies JS output values back into the variable map.
func (e *Engine) SyncOutputToVariables() {
	for k, v := range e.js.GetOutput() {
		e.SetVariable(k, fmt.Sprintf("%v", v))
	}
}

// DrainLogs returns and clears console.log/warn/error output captured since
// the last call. Used by the interpreter to attach per-command log output.
func (e *Engine) DrainLogs() []string {
	out := e.logs
	e.logs = nil
	return out
}

// EnterEnvScope and LeaveEnvScope bracket a sub-flow's variable bindings so
// that assignments made inside do not leak into the calling flow.
func (e *Engine) EnterEnvScope() { e.js.EnterEnvScope() }
func (e *Engine) LeaveEnvScope() { e.js.LeaveEnvScope() }

// EnterScope and LeaveScope bracket a sub-flow's lexical script scope.
func (e *Engine) EnterScope() { e.js.EnterScope() }
func (e *Engine) LeaveScope() { e.js.LeaveScope() }

// ExpandVariables expands ${expr} (JS) and $VAR (plain) syntax in text.
func (e *Engine) ExpandVariables(text string) string {
	if result, err := e.js.ExpandVariables(text); err == nil {
		text = result
	}
	return e.expandDollarVars(text)
}

func (e *Engine) expandDollarVars(text string) string {
	names := make([]string, 0, len(e.variables))
	for name := range e.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, name := range names {
		text = expandDollarVar(text, name, e.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, honoring word boundaries so
// $FOO never matches inside $FOOBAR.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}
		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// extractJS strips a ${...} wrapper if present; flow script fields use
// this to distinguish JS expressions from plain strings.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// RunScript executes a script (runScript/evalScript command body), applying
// env bindings first and predefining likely env-var identifiers as
// undefined so a missing var is falsy rather than a ReferenceError.
func (e *Engine) RunScript(script string, env map[string]string) error {
	script = e.ExpandVariables(script)
	for k, v := range env {
		e.SetVariable(k, v)
	}
	for _, name := range envVarPattern.FindAllString(script, -1) {
		e.js.DefineUndefinedIfMissing(name)
	}
	if err := e.js.RunScript(script); err != nil {
		return err
	}
	e.SyncOutputToVariables()
	return nil
}

// RunScopedScript is RunScript's sub-flow variant: env bindings and any
// assignments the script makes are confined to a fresh env/lexical scope
// that is torn down when the script returns, regardless of error.
func (e *Engine) RunScopedScript(script string, env map[string]string) error {
	script = e.ExpandVariables(script)
	for _, name := range envVarPattern.FindAllString(script, -1) {
		e.js.DefineUndefinedIfMissing(name)
	}
	jsEnv := make(map[string]string, len(env))
	for k, v := range env {
		jsEnv[k] = v
	}
	_, err := e.js.EvaluateScript(script, jsEnv, "sub-flow", true)
	if err != nil {
		return err
	}
	e.SyncOutputToVariables()
	return nil
}

// EvalCondition evaluates a scriptCondition/assertTrue script body and
// coerces the result to a boolean.
func (e *Engine) EvalCondition(script string) (bool, error) {
	script = e.expandDollarVars(extractJS(script))
	for _, name := range envVarPattern.FindAllString(script, -1) {
		e.js.DefineUndefinedIfMissing(name)
	}
	result, err := e.js.Eval(script)
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case bool:
		return v, nil
	case string:
		return v == "true", nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return result != nil, nil
	}
}

// ResolvePath resolves a relative path against the current flow's directory.
func (e *Engine) ResolvePath(path string) string {
	if filepath.IsAbs(path) || e.flowDir == "" {
		return path
	}
	return filepath.Join(e.flowDir, path)
}

// ParseInt parses an integer from s after variable expansion, supporting
// underscore-grouped literals like 10_000.
func (e *Engine) ParseInt(s string, defaultVal int) int {
	s = e.ExpandVariables(s)
	s = strings.ReplaceAll(s, "_", "")
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultVal
}

// CheckCondition decides whether cond currently holds, given the platform
// string and a driver to locate elements against.
func (e *Engine) CheckCondition(ctx context.Context, cond flow.Condition, platform string, driver core.Driver, timeout time.Duration) (bool, error) {
	var scriptResult string
	if cond.Script != "" {
		result, err := e.EvalCondition(cond.Script)
		if err != nil {
			return false, err
		}
		scriptResult = fmt.Sprintf("%v", result)
	}
	return condition.Evaluate(ctx, cond, false, timeout, platform, scriptResult, driverFinder(driver))
}

// driverFinder adapts a core.Driver into a condition.Finder by issuing a
// single, non-retrying assertVisible attempt and reading its success.
// Polling (for notVisible) is layered on top by the condition package.
func driverFinder(driver core.Driver) condition.Finder {
	return func(ctx context.Context, sel flow.Selector, timeout time.Duration) (bool, error) {
		result := driver.Execute(&flow.AssertVisibleStep{Selector: sel})
		return result.Success, nil
	}
}

// ExpandStep returns a copy of step with variables expanded in every string
// field. step itself is left untouched, so it remains usable as the raw,
// pre-substitution template - e.g. a repeat body re-expands "${counter}"
// fresh on every iteration instead of baking in the first iteration's value.
func (e *Engine) ExpandStep(step flow.Step) flow.Step {
	switch s := step.(type) {
	case *flow.InputTextStep:
		expanded := *s
		expanded.Text = e.ExpandVariables(s.Text)
		expanded.Selector = *e.expandSelector(&s.Selector)
		return &expanded
	case *flow.TapOnStep:
		expanded := *s
		expanded.Selector = *e.expandSelector(&s.Selector)
		return &expanded
	case *flow.DoubleTapOnStep:
		expanded := *s
		expanded.Selector = *e.expandSelector(&s.Selector)
		return &expanded
	case *flow.LongPressOnStep:
		expanded := *s
		expanded.Selector = *e.expandSelector(&s.Selector)
		return &expanded
	case *flow.AssertVisibleStep:
		expanded := *s
		expanded.Selector = *e.expandSelector(&s.Selector)
		return &expanded
	case *flow.AssertNotVisibleStep:
		expanded := *s
		expanded.Selector = *e.expandSelector(&s.Selector)
		return &expanded
	case *flow.WaitUntilStep:
		expanded := *s
		if s.Visible != nil {
			expanded.Visible = e.expandSelector(s.Visible)
		}
		if s.NotVisible != nil {
			expanded.NotVisible = e.expandSelector(s.NotVisible)
		}
		return &expanded
	case *flow.ScrollUntilVisibleStep:
		expanded := *s
		expanded.Element = *e.expandSelector(&s.Element)
		return &expanded
	case *flow.CopyTextFromStep:
		expanded := *s
		expanded.Selector = *e.expandSelector(&s.Selector)
		return &expanded
	case *flow.LaunchAppStep:
		expanded := *s
		expanded.AppID = e.ExpandVariables(s.AppID)
		return &expanded
	case *flow.StopAppStep:
		expanded := *s
		expanded.AppID = e.ExpandVariables(s.AppID)
		return &expanded
	case *flow.KillAppStep:
		expanded := *s
		expanded.AppID = e.ExpandVariables(s.AppID)
		return &expanded
	case *flow.ClearStateStep:
		expanded := *s
		expanded.AppID = e.ExpandVariables(s.AppID)
		return &expanded
	case *flow.OpenLinkStep:
		expanded := *s
		expanded.Link = e.ExpandVariables(s.Link)
		return &expanded
	case *flow.PressKeyStep:
		expanded := *s
		expanded.Key = e.ExpandVariables(s.Key)
		return &expanded
	default:
		return step
	}
}

// expandSelector expands variables in selector fields, returning a copy so
// the original parsed flow is never mutated.
func (e *Engine) expandSelector(sel *flow.Selector) *flow.Selector {
	if sel == nil {
		return nil
	}
	expanded := *sel
	expanded.Text = e.ExpandVariables(expanded.Text)
	expanded.ID = e.ExpandVariables(expanded.ID)
	expanded.CSS = e.ExpandVariables(expanded.CSS)
	expanded.Index = e.ExpandVariables(expanded.Index)
	expanded.Traits = e.ExpandVariables(expanded.Traits)
	expanded.Point = e.ExpandVariables(expanded.Point)
	expanded.Start = e.ExpandVariables(expanded.Start)
	expanded.End = e.ExpandVariables(expanded.End)
	expanded.Label = e.ExpandVariables(expanded.Label)

	expanded.ChildOf = e.expandSelector(sel.ChildOf)
	expanded.Below = e.expandSelector(sel.Below)
	expanded.Above = e.expandSelector(sel.Above)
	expanded.LeftOf = e.expandSelector(sel.LeftOf)
	expanded.RightOf = e.expandSelector(sel.RightOf)
	expanded.ContainsChild = e.expandSelector(sel.ContainsChild)
	expanded.InsideOf = e.expandSelector(sel.InsideOf)
	if len(sel.ContainsDescendants) > 0 {
		expanded.ContainsDescendants = make([]*flow.Selector, len(sel.ContainsDescendants))
		for i, child := range sel.ContainsDescendants {
			expanded.ContainsDescendants[i] = e.expandSelector(child)
		}
	}
	return &expanded
}
