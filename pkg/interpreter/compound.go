package interpreter

import (
	"context"
	"fmt"
	"math"

	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
)

// maxRetryAttempts caps retry's configured maxRetries; flows that
// ask for more are silently clamped rather than rejected.
const maxRetryAttempts = 3

// resetCommand recurses into raw and, for composite commands, every child,
// firing onCommandReset on each so the reporter can distinguish a fresh
// iteration's attempts from a retried one's.
func (in *Interpreter) resetCommand(raw flow.Step) {
	in.bus.commandReset(raw)
	if comp, ok := raw.(flow.CompositeCommand); ok {
		for _, child := range comp.Children() {
			in.resetCommand(child)
		}
	}
}

// executeRepeat runs step.Steps up to maxRuns times (unbounded when Times is
// unset), stopping early once step.While stops holding. times <= 0 skips the
// command entirely rather than running it zero times silently.
func (in *Interpreter) executeRepeat(ctx context.Context, step *flow.RepeatStep) (bool, error) {
	unbounded := step.Times == ""
	maxRuns := math.MaxInt32
	if !unbounded {
		maxRuns = in.script.ParseInt(step.Times, 1)
		if maxRuns <= 0 {
			return false, &core.CommandSkipped{Reason: "repeat times <= 0"}
		}
	}

	hasWhile := step.While.Visible != nil || step.While.NotVisible != nil || step.While.Script != ""
	mutatedAny := false
	ranAny := false

	for i := 0; i < maxRuns; i++ {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			in.resetCommand(step)
		}
		if hasWhile {
			ok, err := in.script.CheckCondition(ctx, step.While, in.platform(), in.driver, in.conditionTimeout(step.TimeoutMs))
			if err != nil {
				return mutatedAny, err
			}
			if !ok {
				break
			}
		}

		ranAny = true
		in.table.IncrementRuns(step)
		ok, mutated, err := in.executeCommands(ctx, step.Steps)
		mutatedAny = mutatedAny || mutated
		if err != nil {
			return mutatedAny, err
		}
		if !ok {
			return mutatedAny, fmt.Errorf("repeat body did not complete")
		}
	}

	if !ranAny {
		return mutatedAny, &core.CommandSkipped{Reason: "repeat ran zero iterations"}
	}
	return mutatedAny, nil
}

// executeRetry runs step.Steps (or its file's steps) at most min(maxRetries,
// 3)+1 times, stopping at the first attempt that completes cleanly. Its env
// bindings and any variables the body assigns are confined to a fresh scope
// torn down when retry returns, success or failure.
func (in *Interpreter) executeRetry(ctx context.Context, step *flow.RetryStep) (bool, error) {
	maxRetries := in.script.ParseInt(step.MaxRetries, 1)
	if maxRetries > maxRetryAttempts {
		maxRetries = maxRetryAttempts
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	attempts := maxRetries + 1

	in.script.EnterEnvScope()
	defer in.script.LeaveEnvScope()
	for k, v := range step.Env {
		in.script.SetVariable(k, in.script.ExpandVariables(v))
	}

	steps := step.Steps
	if len(steps) == 0 && step.File != "" {
		subFlow, err := flow.ParseFile(in.script.ResolvePath(step.File))
		if err != nil {
			return false, err
		}
		steps = subFlow.Steps
	}

	var lastErr error
	mutatedAny := false
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return mutatedAny, ctx.Err()
		}
		if attempt > 1 {
			in.resetCommand(step)
		}

		in.table.IncrementRuns(step)
		ok, mutated, err := in.executeCommands(ctx, steps)
		mutatedAny = mutatedAny || mutated
		if err == nil && ok {
			return mutatedAny, nil
		}
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("retry body did not complete")
		}
		if attempt < attempts {
			in.table.SetInsight(step, fmt.Sprintf("attempt %d/%d failed: %v", attempt, attempts, lastErr))
		}
	}
	return mutatedAny, lastErr
}

// executeRunFlow runs an inline or file-referenced sub-flow. A When clause
// that doesn't hold skips the whole sub-flow without evaluating it at all.
// The sub-flow's own defineVariables commands are hoisted exactly as a
// top-level flow's are, and its env bindings live only for the sub-flow's
// duration via a real env-scope push/pop rather than a snapshot/restore.
func (in *Interpreter) executeRunFlow(ctx context.Context, step *flow.RunFlowStep) (bool, error) {
	if step.When != nil {
		ok, err := in.script.CheckCondition(ctx, *step.When, in.platform(), in.driver, in.conditionTimeout(step.TimeoutMs))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, &core.CommandSkipped{Reason: "runFlow when condition not met"}
		}
	}

	steps := step.Steps
	var subCfg flow.Config
	if len(steps) == 0 {
		if step.File == "" {
			return false, core.NewDomainError(core.InvalidCommand, "runFlow requires file or inline commands")
		}
		subFlow, err := flow.ParseFile(in.script.ResolvePath(step.File))
		if err != nil {
			return false, err
		}
		steps = subFlow.Steps
		subCfg = subFlow.Config
	}

	in.script.EnterEnvScope()
	in.script.EnterScope()
	defer in.script.LeaveScope()
	defer in.script.LeaveEnvScope()
	for k, v := range step.Env {
		in.script.SetVariable(k, in.script.ExpandVariables(v))
	}

	defineVars, filtered := hoistDefineVariables(steps)
	for _, dv := range defineVars {
		in.applyDefineVariables(dv.(*flow.DefineVariablesStep))
	}

	onStartOk := true
	var err error
	if len(subCfg.OnFlowStart) > 0 {
		onStartOk, _, err = in.executeCommands(ctx, subCfg.OnFlowStart)
		if err != nil {
			return false, err
		}
	}

	bodyOk := false
	mutated := false
	if onStartOk {
		bodyOk, mutated, err = in.executeCommands(ctx, filtered)
	}

	if len(subCfg.OnFlowComplete) > 0 {
		completeOk, completeMutated, completeErr := in.executeCommands(ctx, subCfg.OnFlowComplete)
		mutated = mutated || completeMutated
		bodyOk = bodyOk && completeOk
		if err == nil {
			err = completeErr
		}
	}

	if !onStartOk {
		bodyOk = false
	}
	if !bodyOk && err == nil {
		err = fmt.Errorf("sub-flow did not complete")
	}
	return mutated, err
}
