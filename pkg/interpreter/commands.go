package interpreter

import (
	"context"
	"fmt"
	"unicode"

	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
)

// executeCommand dispatches one already-substituted step to the driver, the
// script engine, or a flow-control handler, and reports whether it mutated
// device state (used by repeat/retry to decide whether to keep iterating
// when nothing is changing).
func (in *Interpreter) executeCommand(ctx context.Context, step flow.Step) (mutated bool, err error) {
	switch s := step.(type) {
	case *flow.ApplyConfigurationStep, *flow.DefineVariablesStep:
		// Hoisted/consumed earlier; nothing to do if one slips through again.
		return false, nil

	case *flow.RepeatStep:
		return in.executeRepeat(ctx, s)
	case *flow.RetryStep:
		return in.executeRetry(ctx, s)
	case *flow.RunFlowStep:
		return in.executeRunFlow(ctx, s)

	case *flow.RunScriptStep:
		return in.executeRunScript(s)
	case *flow.EvalScriptStep:
		return true, in.script.RunScript(s.Script, nil)

	case *flow.AssertTrueStep:
		ok, err := in.script.EvalCondition(s.Script)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, core.NewDomainError(core.AssertionFailure, "condition was not true").
				WithDetails(s.Script)
		}
		return false, nil

	case *flow.AssertConditionStep:
		ok, err := in.script.CheckCondition(ctx, s.Condition, in.platform(), in.driver, in.conditionTimeout(s.TimeoutMs))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, core.NewDomainError(core.AssertionFailure, "condition was not met")
		}
		return false, nil

	case *flow.AssertNoDefectsWithAIStep:
		return in.executeAssertNoDefectsWithAI(ctx, s)
	case *flow.AssertWithAIStep:
		return in.executeAssertWithAI(ctx, s)
	case *flow.ExtractTextWithAIStep:
		return in.executeExtractTextWithAI(ctx, s)

	case *flow.CopyTextFromStep:
		result := in.driver.Execute(s)
		if !result.Success {
			return false, core.NewDomainError(core.UnableToCopyTextFromElement, describeFailure(result, "could not copy text from element")).WithCause(result.Error)
		}
		if text, ok := result.Data.(string); ok {
			in.script.SetCopiedText(text)
		} else if result.Element != nil {
			in.script.SetCopiedText(result.Element.Text)
		}
		return false, nil

	case *flow.PasteTextStep:
		text := in.script.GetCopiedText()
		if err := requireASCIIOrUnicodeSupport(text, in.driver.IsUnicodeInputSupported()); err != nil {
			return false, err
		}
		result := in.driver.Execute(&flow.InputTextStep{BaseStep: s.BaseStep, Text: text})
		if !result.Success {
			return false, driverFailure(result, "could not paste text")
		}
		return true, nil

	case *flow.InputTextStep:
		if err := requireASCIIOrUnicodeSupport(s.Text, in.driver.IsUnicodeInputSupported()); err != nil {
			return false, err
		}
		result := in.driver.Execute(s)
		if !result.Success {
			return false, driverFailure(result, "could not input text")
		}
		return true, nil

	case *flow.LaunchAppStep:
		result := in.driver.Execute(s)
		if !result.Success {
			return false, core.NewDomainError(core.UnableToLaunchApp, describeFailure(result, "could not launch app")).WithCause(result.Error)
		}
		return true, nil

	case *flow.ClearStateStep:
		result := in.driver.Execute(s)
		if !result.Success {
			return false, core.NewDomainError(core.UnableToClearState, describeFailure(result, "could not clear state")).WithCause(result.Error)
		}
		return true, nil

	case *flow.ScrollUntilVisibleStep:
		return in.executeScrollUntilVisible(ctx, s)

	case *flow.TapOnPointStep:
		if err := validatePointPercent(s.Point); err != nil {
			return false, err
		}
		result := in.driver.Execute(s)
		if !result.Success {
			return false, driverFailure(result, "could not tap point")
		}
		return true, nil

	case *flow.UnsupportedStep:
		return false, core.NewDomainError(core.InvalidCommand, "unsupported command").WithDetails(s.Reason)

	default:
		result := in.driver.Execute(step)
		if !result.Success {
			return false, driverFailure(result, "command failed")
		}
		return isMutatingByDefault(step), nil
	}
}

// executeRunScript is run-script's extra gate over eval-script: a missing
// script body (an explicitly empty file reference) skips rather than fails.
func (in *Interpreter) executeRunScript(s *flow.RunScriptStep) (bool, error) {
	path := s.ScriptPath()
	if path == "" {
		return false, &core.CommandSkipped{Reason: "runScript has no script body"}
	}
	script := s.Script
	if s.File != "" {
		resolved := in.script.ResolvePath(s.File)
		data, err := readScriptFile(resolved)
		if err != nil {
			return false, err
		}
		script = data
	}
	if err := in.script.RunScopedScript(script, s.Env); err != nil {
		return false, err
	}
	return true, nil
}

func driverFailure(result *core.CommandResult, fallback string) error {
	return core.NewDomainError(core.ElementNotFound, describeFailure(result, fallback)).WithCause(result.Error)
}

func describeFailure(result *core.CommandResult, fallback string) string {
	if result.Message != "" {
		return result.Message
	}
	return fallback
}

// requireASCIIOrUnicodeSupport surfaces UnicodeNotSupported when the driver
// declares it cannot type non-ASCII text and text contains any.
func requireASCIIOrUnicodeSupport(text string, unicodeSupported bool) error {
	if unicodeSupported {
		return nil
	}
	for _, r := range text {
		if r > unicode.MaxASCII {
			return core.NewDomainError(core.UnicodeNotSupported, "driver cannot type non-ASCII text").
				WithDetails(fmt.Sprintf("text contained %q", r))
		}
	}
	return nil
}

// validatePointPercent rejects a "x%, y%" point outside the 0-100 range;
// malformed/absolute points are left to the driver to interpret.
func validatePointPercent(point string) error {
	x, y, ok := parsePercentPoint(point)
	if !ok {
		return nil
	}
	if x < 0 || x > 100 || y < 0 || y > 100 {
		return core.NewDomainError(core.InvalidCommand, "tapOnPoint percentages must be between 0 and 100").
			WithDetails(point)
	}
	return nil
}

// isMutatingByDefault classifies steps that do not return an explicit
// success/failure signal worth tracking as "mutating" for repeat/retry
// purposes; pure reads (assertions, screenshots) are not.
func isMutatingByDefault(step flow.Step) bool {
	switch step.(type) {
	case *flow.AssertVisibleStep, *flow.AssertNotVisibleStep, *flow.WaitUntilStep,
		*flow.TakeScreenshotStep, *flow.PressKeyStep:
		return false
	default:
		return true
	}
}
