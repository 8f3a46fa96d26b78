// Package interpreter runs a parsed flow's commands against a core.Driver,
// owning the per-command lifecycle (substitution, state machine, observer
// notifications) that flow_runner.go used to fold into the driver itself.
package interpreter

import (
	"context"
	"time"

	"github.com/flowctl/orchestrator/pkg/aiengine"
	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
	"github.com/flowctl/orchestrator/pkg/observer"
	"github.com/flowctl/orchestrator/pkg/scriptengine"
)

// defaultConditionTimeout bounds assertCondition/while/when checks that
// don't carry an explicit timeout of their own.
const defaultConditionTimeout = 5 * time.Second

// Interpreter walks one flow's command tree against a single driver. It is
// not safe for concurrent use; parallel flows each get their own.
type Interpreter struct {
	driver core.Driver
	script *scriptengine.Engine
	bus    *observer.Bus
	ai     aiengine.Engine
	ctrl   *FlowController
	table  *observer.Table

	// timeOfLastInteraction is the wall-clock time of the most recent
	// mutating command's completion. Selector lookups and condition waits
	// shrink their timeout by however long has elapsed since, so a flow
	// that has been sitting idle doesn't wait the full budget again.
	timeOfLastInteraction time.Time
}

// New creates an Interpreter. ai may be nil; it is only required by flows
// that use one of the AI-prefixed commands.
func New(driver core.Driver, script *scriptengine.Engine, bus *observer.Bus, ai aiengine.Engine) *Interpreter {
	return &Interpreter{
		driver:                driver,
		script:                script,
		bus:                   bus,
		ai:                    ai,
		ctrl:                  NewFlowController(),
		table:                 observer.NewTable(bus),
		timeOfLastInteraction: time.Now(),
	}
}

// Controller exposes the flow's pause/resume switch.
func (in *Interpreter) Controller() *FlowController { return in.ctrl }

// Table exposes the per-command metadata accumulated so far.
func (in *Interpreter) Table() *observer.Table { return in.table }

func (in *Interpreter) platform() string {
	if info := in.driver.GetPlatformInfo(); info != nil {
		return info.Platform
	}
	return ""
}

// conditionTimeout resolves the timeout for an assertCondition/while/when
// check: the command's own timeoutMs if set, else defaultConditionTimeout,
// adjusted to how long the flow has been idle since its last mutation.
func (in *Interpreter) conditionTimeout(commandTimeoutMs int) time.Duration {
	lookupTimeout := defaultConditionTimeout
	if commandTimeoutMs > 0 {
		lookupTimeout = time.Duration(commandTimeoutMs) * time.Millisecond
	}
	return in.adjustedToLatestInteraction(lookupTimeout)
}

// adjustedToLatestInteraction shrinks t by however long has elapsed since
// timeOfLastInteraction, floored at zero: adjustedToLatestInteraction(t) =
// max(0, t - (now - timeOfLastInteraction)).
func (in *Interpreter) adjustedToLatestInteraction(t time.Duration) time.Duration {
	elapsed := time.Since(in.timeOfLastInteraction)
	adjusted := t - elapsed
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// RunFlow executes f from flow start to flow complete: it locates and
// applies an applyConfiguration command if present, hoists and runs
// defineVariables commands ahead of everything else, fires onFlowStart,
// runs the remaining commands, and always fires onFlowComplete - combining
// its outcome with the body's, exactly as onFlowComplete's result gates the
// overall verdict even when the body already failed.
func (in *Interpreter) RunFlow(ctx context.Context, f *flow.Flow) (bool, error) {
	ext, filtered := locateApplyConfiguration(f.Steps)
	if f.Config.Ext == nil {
		f.Config.Ext = ext
	}
	if engineName, ok := f.Config.Ext["jsEngine"]; ok && engineName != "" && engineName != "graaljs" && engineName != "rhino" {
		in.table.SetInsight(nil, "unrecognized jsEngine "+engineName+"; using the built-in engine")
	}

	defineVars, filtered := hoistDefineVariables(filtered)
	for _, dv := range defineVars {
		in.applyDefineVariables(dv.(*flow.DefineVariablesStep))
	}

	in.script.SetPlatform(in.platform())
	in.driver.SetFindTimeout(f.Config.Timeout)

	in.bus.flowStart(filtered)

	var bodyOk bool
	var flowErr error
	func() {
		defer func() {
			onCompleteOk := true
			if len(f.Config.OnFlowComplete) > 0 {
				onCompleteOk, _, _ = in.executeCommands(ctx, f.Config.OnFlowComplete)
			}
			bodyOk = bodyOk && onCompleteOk
		}()

		onStartOk := true
		if len(f.Config.OnFlowStart) > 0 {
			onStartOk, _, flowErr = in.executeCommands(ctx, f.Config.OnFlowStart)
		}
		if !onStartOk {
			bodyOk = false
			return
		}
		bodyOk, _, flowErr = in.executeCommands(ctx, filtered)
	}()

	in.bus.flowComplete(bodyOk)
	return bodyOk, flowErr
}

// applyDefineVariables is the hoisted, unconditional effect of a
// defineVariables command: every entry becomes both a plain variable and a
// JS-visible binding.
func (in *Interpreter) applyDefineVariables(step *flow.DefineVariablesStep) {
	in.bus.commandStart(-1, step)
	for k, v := range step.Env {
		in.script.SetVariable(k, in.script.ExpandVariables(v))
	}
	in.bus.commandComplete(-1, step)
}

// locateApplyConfiguration finds the (at most one) applyConfiguration
// command, removes it from the returned slice, and returns its resolved
// ext map (nil if absent).
func locateApplyConfiguration(steps []flow.Step) (map[string]string, []flow.Step) {
	for i, s := range steps {
		if cfg, ok := s.(*flow.ApplyConfigurationStep); ok {
			out := make([]flow.Step, 0, len(steps)-1)
			out = append(out, steps[:i]...)
			out = append(out, steps[i+1:]...)
			return cfg.Ext, out
		}
	}
	return nil, steps
}

// hoistDefineVariables pulls every defineVariables command to the front,
// regardless of its original position, so variables they define are
// available to every other command including ones that textually precede
// them.
func hoistDefineVariables(steps []flow.Step) ([]flow.Step, []flow.Step) {
	var defineVars, rest []flow.Step
	for _, s := range steps {
		if _, ok := s.(*flow.DefineVariablesStep); ok {
			defineVars = append(defineVars, s)
		} else {
			rest = append(rest, s)
		}
	}
	return defineVars, rest
}

// executeCommands is the per-command loop shared by the top-level flow body,
// lifecycle hooks, sub-flows, and repeat/retry bodies. It returns whether
// every command either completed or was cleanly skipped/warned, whether any
// command mutated device state, and the first unresolved error.
func (in *Interpreter) executeCommands(ctx context.Context, cmds []flow.Step) (ok bool, mutated bool, err error) {
	ok = true
	for idx, raw := range cmds {
		if ctx.Err() != nil {
			in.bus.commandSkipped(idx, raw)
			continue
		}
		in.ctrl.WaitIfPaused(ctx)
		if ctx.Err() != nil {
			in.bus.commandSkipped(idx, raw)
			continue
		}

		in.bus.commandStart(idx, raw)
		in.script.DrainLogs()

		evaluated := in.script.ExpandStep(raw)
		in.table.SetEvaluatedCommand(raw, evaluated)

		didMutate, cmdErr := in.executeCommand(ctx, evaluated)
		mutated = mutated || didMutate
		if didMutate {
			in.timeOfLastInteraction = time.Now()
		}

		for _, line := range in.script.DrainLogs() {
			in.table.AppendLog(raw, line)
		}

		switch e := cmdErr.(type) {
		case nil:
			in.bus.commandComplete(idx, raw)
			continue
		case *core.CommandSkipped:
			in.bus.commandSkipped(idx, raw)
			continue
		case *core.CommandWarned:
			in.table.SetInsight(raw, e.Cause.Error())
			in.bus.commandWarned(idx, raw, e.Cause)
			continue
		default:
			if isOptional(raw) {
				in.table.SetInsight(raw, cmdErr.Error())
				in.bus.commandWarned(idx, raw, cmdErr)
				continue
			}
			resolution := in.bus.commandFailed(idx, raw, cmdErr)
			if resolution == observer.Continue {
				in.table.SetInsight(raw, cmdErr.Error())
				continue
			}
			return false, mutated, cmdErr
		}
	}
	return ok, mutated, nil
}

// isOptional reports whether raw itself, or the selector it carries, was
// marked optional - in which case an unhandled error demotes to a warning
// rather than failing the flow.
func isOptional(raw flow.Step) bool {
	if raw.IsOptional() {
		return true
	}
	switch s := raw.(type) {
	case *flow.TapOnStep:
		return selectorOptional(&s.Selector)
	case *flow.DoubleTapOnStep:
		return selectorOptional(&s.Selector)
	case *flow.LongPressOnStep:
		return selectorOptional(&s.Selector)
	case *flow.AssertVisibleStep:
		return selectorOptional(&s.Selector)
	case *flow.AssertNotVisibleStep:
		return selectorOptional(&s.Selector)
	case *flow.InputTextStep:
		return selectorOptional(&s.Selector)
	case *flow.CopyTextFromStep:
		return selectorOptional(&s.Selector)
	case *flow.ScrollUntilVisibleStep:
		return selectorOptional(&s.Element)
	}
	return false
}

func selectorOptional(sel *flow.Selector) bool {
	return sel != nil && sel.Optional != nil && *sel.Optional
}
