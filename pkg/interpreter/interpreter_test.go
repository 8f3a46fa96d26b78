package interpreter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/driver/mock"
	"github.com/flowctl/orchestrator/pkg/flow"
	"github.com/flowctl/orchestrator/pkg/observer"
	"github.com/flowctl/orchestrator/pkg/scriptengine"
	"github.com/flowctl/orchestrator/pkg/selector"
)

func newTestInterpreter(t *testing.T, cfg mock.Config) (*Interpreter, *mock.Driver) {
	t.Helper()
	d := mock.New(cfg)
	script := scriptengine.New()
	t.Cleanup(script.Close)
	return New(d, script, &observer.Bus{}, nil), d
}

func TestRunFlowExecutesDefinedVariablesFirst(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{})
	f := &flow.Flow{
		Steps: []flow.Step{
			&flow.AssertTrueStep{Script: "GREETING == 'hi'"},
			&flow.DefineVariablesStep{Env: map[string]string{"GREETING": "hi"}},
		},
	}
	ok, err := in.RunFlow(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected flow to succeed once defineVariables is hoisted")
	}
}

func TestRunFlowFiresOnFlowCompleteEvenOnFailure(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{FailOnStep: 1})
	var completeCalled bool
	var completeSawSuccess bool
	in.bus.OnFlowComplete = func(success bool) {
		completeCalled = true
		completeSawSuccess = success
	}
	f := &flow.Flow{
		Steps: []flow.Step{&flow.TapOnStep{Selector: flow.Selector{Text: "Login"}}},
	}
	ok, err := in.RunFlow(context.Background(), f)
	if ok {
		t.Fatal("expected flow to fail")
	}
	if err == nil {
		t.Fatal("expected an error")
	}
	if !completeCalled {
		t.Fatal("expected onFlowComplete to run even though the flow failed")
	}
	if completeSawSuccess {
		t.Fatal("expected onFlowComplete to observe failure")
	}
}

func TestExecuteCommandsDemotesOptionalFailureToWarning(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{FailOnStep: 1})
	optionalTrue := true
	raw := &flow.TapOnStep{Selector: flow.Selector{Text: "Maybe", Optional: &optionalTrue}}
	var warned bool
	in.bus.OnCommandWarned = func(idx int, raw flow.Step, cause error) { warned = true }
	ok, _, err := in.executeCommands(context.Background(), []flow.Step{raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected flow to continue past an optional failure")
	}
	if !warned {
		t.Fatal("expected OnCommandWarned to fire")
	}
}

func TestExecuteCommandsHonorsContinueResolution(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{FailOnStep: 1})
	in.bus.OnCommandFailed = func(idx int, raw flow.Step, err error) observer.Resolution {
		return observer.Continue
	}
	steps := []flow.Step{
		&flow.TapOnStep{Selector: flow.Selector{Text: "A"}},
		&flow.TapOnStep{Selector: flow.Selector{Text: "B"}},
	}
	ok, _, err := in.executeCommands(context.Background(), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected the flow to be reported as completed when OnCommandFailed returns Continue")
	}
}

func TestExecuteCommandsDefaultsToFailOnUnhandledError(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{FailOnStep: 1})
	steps := []flow.Step{
		&flow.TapOnStep{Selector: flow.Selector{Text: "A"}},
		&flow.TapOnStep{Selector: flow.Selector{Text: "B"}},
	}
	ok, _, err := in.executeCommands(context.Background(), steps)
	if ok {
		t.Fatal("expected flow to stop on the first unhandled failure")
	}
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestRepeatSkipsWhenTimesIsZero(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{})
	step := &flow.RepeatStep{Times: "0", Steps: []flow.Step{&flow.TapOnStep{}}}
	_, err := in.executeRepeat(context.Background(), step)
	if _, ok := err.(interface{ Error() string }); !ok || err == nil {
		t.Fatalf("expected an error, got %v", err)
	}
}

func TestRepeatRunsFixedTimes(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{})
	var runs int
	in.bus.OnCommandStart = func(idx int, raw flow.Step) {
		if _, ok := raw.(*flow.TapOnStep); ok {
			runs++
		}
	}
	step := &flow.RepeatStep{Times: "3", Steps: []flow.Step{&flow.TapOnStep{Selector: flow.Selector{Text: "X"}}}}
	_, err := in.executeRepeat(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs != 3 {
		t.Fatalf("expected 3 runs, got %d", runs)
	}
}

func TestRetryClampsMaxRetriesToThree(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{FailOnStep: 1000})
	var attempts int
	in.bus.OnCommandStart = func(idx int, raw flow.Step) {
		if _, ok := raw.(*flow.TapOnStep); ok {
			attempts++
		}
	}
	step := &flow.RetryStep{
		MaxRetries: "99",
		Steps:      []flow.Step{&flow.TapOnStep{Selector: flow.Selector{Text: "X"}}},
	}
	// Force every attempt to fail by making the mock driver fail on a step
	// count that is always reached.
	d := mock.New(mock.Config{FailOnStep: 1})
	script := scriptengine.New()
	defer script.Close()
	in = New(d, script, &observer.Bus{OnCommandStart: in.bus.OnCommandStart}, nil)

	_, err := in.executeRetry(context.Background(), step)
	if err == nil {
		t.Fatal("expected retry to exhaust its attempts and return an error")
	}
	if attempts != maxRetryAttempts+1 {
		t.Fatalf("expected %d attempts, got %d", maxRetryAttempts+1, attempts)
	}
}

func TestRunFlowStepWhenConditionSkipsSubFlow(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{})
	var skipped bool
	in.bus.OnCommandSkipped = func(idx int, raw flow.Step) { skipped = true }
	// The mock driver reports platform "mock"; a When clause pinned to a
	// different platform fails immediately, with no polling involved.
	step := &flow.RunFlowStep{
		When:  &flow.Condition{Platform: "ios"},
		Steps: []flow.Step{&flow.TapOnStep{Selector: flow.Selector{Text: "Inner"}}},
	}
	steps := []flow.Step{step}
	ok, _, err := in.executeCommands(context.Background(), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected flow to continue past a skipped runFlow")
	}
	if !skipped {
		t.Fatal("expected OnCommandSkipped to fire for the runFlow command")
	}
}

func TestConditionTimeoutPrefersCommandTimeoutOverDefault(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{})
	if got := in.conditionTimeout(2000); got != 2*time.Second {
		t.Fatalf("expected command timeoutMs to win, got %v", got)
	}
	if got := in.conditionTimeout(0); got != defaultConditionTimeout {
		t.Fatalf("expected defaultConditionTimeout when unset, got %v", got)
	}
}

func TestAdjustedToLatestInteractionShrinksByElapsedIdle(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{})
	in.timeOfLastInteraction = time.Now().Add(-3 * time.Second)
	got := in.adjustedToLatestInteraction(5 * time.Second)
	if got <= 0 || got > 2*time.Second {
		t.Fatalf("expected roughly 2s remaining, got %v", got)
	}
}

func TestAdjustedToLatestInteractionFloorsAtZero(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{})
	in.timeOfLastInteraction = time.Now().Add(-10 * time.Second)
	if got := in.adjustedToLatestInteraction(5 * time.Second); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestExecuteCommandsAdvancesInteractionClockOnlyOnMutation(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{})
	before := in.timeOfLastInteraction

	// assertTrue never mutates; the clock should not move.
	steps := []flow.Step{&flow.AssertTrueStep{Script: "1 == 1"}}
	if _, _, err := in.executeCommands(context.Background(), steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in.timeOfLastInteraction.Equal(before) {
		t.Fatal("expected timeOfLastInteraction unchanged by a non-mutating command")
	}

	// inputText does mutate; the clock should advance.
	steps = []flow.Step{&flow.InputTextStep{Text: "hi"}}
	if _, _, err := in.executeCommands(context.Background(), steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in.timeOfLastInteraction.After(before) {
		t.Fatal("expected timeOfLastInteraction to advance after a mutating command")
	}
}

func TestInputTextRejectsNonASCIIWhenDriverLacksUnicodeSupport(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{Platform: "ios"})
	steps := []flow.Step{&flow.InputTextStep{Text: "café"}}
	ok, _, err := in.executeCommands(context.Background(), steps)
	if ok || err == nil {
		t.Fatalf("expected non-ASCII text to fail against a driver without unicode support, ok=%v err=%v", ok, err)
	}
}

func TestInputTextAllowsNonASCIIWhenDriverSupportsUnicode(t *testing.T) {
	in, _ := newTestInterpreter(t, mock.Config{Platform: "android"})
	steps := []flow.Step{&flow.InputTextStep{Text: "café"}}
	ok, _, err := in.executeCommands(context.Background(), steps)
	if !ok || err != nil {
		t.Fatalf("expected non-ASCII text to succeed against a unicode-capable driver, ok=%v err=%v", ok, err)
	}
}

func TestScrollUntilVisibleNotFoundMessageListsAllTuningKnobs(t *testing.T) {
	root := &selector.Node{ClassName: "View", Bounds: core.Bounds{Width: 1080, Height: 2400}}
	in, _ := newTestInterpreter(t, mock.Config{Hierarchy: root})
	step := &flow.ScrollUntilVisibleStep{
		BaseStep:             flow.BaseStep{TimeoutMs: 1},
		Element:              flow.Selector{Text: "Nonexistent"},
		MaxScrolls:           1,
		Speed:                80,
		VisibilityPercentage: 90,
		CenterElement:        true,
	}
	_, err := in.executeScrollUntilVisible(context.Background(), step)
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	for _, knob := range []string{"timeout", "speed=80", "visibilityPercentage>=90", "centerElement=true"} {
		if !strings.Contains(msg, knob) {
			t.Fatalf("expected debug message to mention %q, got %q", knob, msg)
		}
	}
}

func TestFlowControllerWaitIfPausedReturnsOnResume(t *testing.T) {
	ctrl := NewFlowController()
	ctrl.Pause()
	done := make(chan struct{})
	go func() {
		ctrl.WaitIfPaused(context.Background())
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("expected WaitIfPaused to block while paused")
	case <-time.After(50 * time.Millisecond):
	}
	ctrl.Resume()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected WaitIfPaused to return after Resume")
	}
}
