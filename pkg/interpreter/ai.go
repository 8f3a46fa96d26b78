package interpreter

import (
	"context"
	"strings"

	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
)

// requireAIEngine surfaces CloudApiKeyNotAvailable the moment an AI-prefixed
// command runs without one configured - never at flow start, since a flow
// that never reaches one of these commands has no need for it.
func (in *Interpreter) requireAIEngine() error {
	if in.ai == nil {
		return core.NewDomainError(core.CloudApiKeyNotAvailable, "no AI engine configured")
	}
	return nil
}

func (in *Interpreter) executeAssertNoDefectsWithAI(ctx context.Context, s *flow.AssertNoDefectsWithAIStep) (bool, error) {
	if err := in.requireAIEngine(); err != nil {
		return false, err
	}
	screenshot, err := in.driver.Screenshot()
	if err != nil {
		return false, core.NewDomainError(core.DriverFailure, "could not capture screenshot").WithCause(err)
	}
	defects, err := in.ai.FindDefects(ctx, screenshot)
	if err != nil {
		return false, err
	}
	if len(defects) == 0 {
		return false, nil
	}
	in.table.GeneratedOutput(s, defects)
	reasons := make([]string, len(defects))
	for i, d := range defects {
		reasons[i] = d.Reasoning
	}
	return false, core.NewDomainError(core.AssertionFailure, "AI engine found defects").
		WithDetails(strings.Join(reasons, "; "))
}

func (in *Interpreter) executeAssertWithAI(ctx context.Context, s *flow.AssertWithAIStep) (bool, error) {
	if err := in.requireAIEngine(); err != nil {
		return false, err
	}
	screenshot, err := in.driver.Screenshot()
	if err != nil {
		return false, core.NewDomainError(core.DriverFailure, "could not capture screenshot").WithCause(err)
	}
	defect, err := in.ai.PerformAssertion(ctx, screenshot, s.Assertion)
	if err != nil {
		return false, err
	}
	if defect == nil {
		return false, nil
	}
	in.table.GeneratedOutput(s, defect)
	return false, core.NewDomainError(core.AssertionFailure, defect.Reasoning)
}

func (in *Interpreter) executeExtractTextWithAI(ctx context.Context, s *flow.ExtractTextWithAIStep) (bool, error) {
	if err := in.requireAIEngine(); err != nil {
		return false, err
	}
	screenshot, err := in.driver.Screenshot()
	if err != nil {
		return false, core.NewDomainError(core.DriverFailure, "could not capture screenshot").WithCause(err)
	}
	text, err := in.ai.ExtractText(ctx, screenshot, s.Query)
	if err != nil {
		return false, err
	}
	in.table.GeneratedOutput(s, text)
	if s.Variable != "" {
		in.script.SetVariable(s.Variable, text)
	}
	return false, nil
}
