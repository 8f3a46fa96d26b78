package executor

import (
	"context"
	"path/filepath"
	"time"

	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
	"github.com/flowctl/orchestrator/pkg/interpreter"
	"github.com/flowctl/orchestrator/pkg/observer"
	"github.com/flowctl/orchestrator/pkg/report"
	"github.com/flowctl/orchestrator/pkg/scriptengine"
)

// FlowRunner drives a single flow instance from flow start to flow
// complete, wiring a fresh script engine and observer.Bus per attempt and
// delegating the actual command loop to pkg/interpreter. Retried flows
// (RunnerConfig.Retries > 0) re-run the whole flow from scratch, recording
// every failed attempt via indexWriter.RecordAttempt before the next try.
type FlowRunner struct {
	ctx         context.Context
	flow        flow.Flow
	detail      *report.FlowDetail
	driver      core.Driver
	config      RunnerConfig
	indexWriter *report.IndexWriter
	flowIdx     int
	totalFlows  int
}

// Run executes fr.flow, retrying up to fr.config.Retries additional times
// on failure, and reports the final attempt's outcome.
func (fr *FlowRunner) Run() FlowResult {
	start := time.Now()

	maxAttempts := fr.config.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var ok bool
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err = fr.runOnce()
		if ok {
			break
		}
		if attempt < maxAttempts {
			errMsg := ""
			if err != nil {
				errMsg = err.Error()
			}
			fr.indexWriter.RecordAttempt(fr.detail.ID, attempt, report.StatusFailed,
				time.Since(start).Milliseconds(), errMsg, filepath.Join("flows", fr.detail.ID+".json"))
		}
	}

	result := fr.buildResult(ok, err, start)
	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(fr.detail.Name, ok, result.Duration, result.Error)
	}
	return result
}

// runOnce builds a fresh script engine, Reporter and Interpreter and runs
// the flow once. The Reporter resets fr.detail.Commands at flow start, so a
// retried attempt's report always reflects the most recent try.
func (fr *FlowRunner) runOnce() (bool, error) {
	script := scriptengine.New()
	defer script.Close()

	script.ImportSystemEnv()
	script.SetFlowDir(filepath.Dir(fr.flow.SourcePath))
	script.SetVariables(fr.flow.Config.Env)
	if len(fr.config.Env) > 0 {
		script.SetVariables(fr.config.Env)
	}

	_, reporterBus := report.NewReporter(fr.detail, fr.config.OutputDir, fr.indexWriter, fr.driver, report.ArtifactMode(fr.config.Artifacts))

	bus := observer.Combine(reporterBus, fr.consoleBus(), observer.NewLoggingBus(nil))

	in := interpreter.New(fr.driver, script, bus, fr.config.AI)

	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, fr.detail.Name, fr.flow.SourcePath)
	}

	f := fr.flow
	return in.RunFlow(fr.ctx, &f)
}

// consoleBus adapts command lifecycle events onto the live-progress
// callbacks RunnerConfig exposes for the CLI's terminal output.
func (fr *FlowRunner) consoleBus() *observer.Bus {
	starts := make(map[flow.Step]time.Time)

	elapsed := func(raw flow.Step) int64 {
		if t, ok := starts[raw]; ok {
			return time.Since(t).Milliseconds()
		}
		return 0
	}
	describe := func(raw flow.Step) string {
		if raw.Label() != "" {
			return raw.Label()
		}
		return raw.Describe()
	}
	report := func(idx int, raw flow.Step, passed bool, errMsg string) {
		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(idx, describe(raw), passed, elapsed(raw), errMsg)
		}
	}

	return &observer.Bus{
		OnCommandStart: func(idx int, raw flow.Step) {
			starts[raw] = time.Now()
		},
		OnCommandComplete: func(idx int, raw flow.Step) {
			report(idx, raw, true, "")
		},
		OnCommandWarned: func(idx int, raw flow.Step, cause error) {
			report(idx, raw, true, cause.Error())
		},
		OnCommandSkipped: func(idx int, raw flow.Step) {
			report(idx, raw, true, "")
		},
		OnCommandFailed: func(idx int, raw flow.Step, err error) observer.Resolution {
			report(idx, raw, false, err.Error())
			return observer.Fail
		},
	}
}

// buildResult summarizes the final attempt's report.FlowDetail into a
// FlowResult. Step counts include nested (repeat/retry/runFlow body)
// commands, not just top-level ones - a deliberate simplification over the
// teacher's top-level-only count, since pkg/report's Command list is now
// populated lazily as the interpreter discovers nested steps rather than
// walked up front.
func (fr *FlowRunner) buildResult(ok bool, err error, start time.Time) FlowResult {
	status := report.StatusPassed
	if !ok {
		status = report.StatusFailed
	}

	result := FlowResult{
		ID:       fr.detail.ID,
		Name:     fr.detail.Name,
		Status:   status,
		Duration: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}

	for _, cmd := range fr.detail.Commands {
		result.StepsTotal++
		switch cmd.Status {
		case report.StatusPassed:
			result.StepsPassed++
		case report.StatusFailed:
			result.StepsFailed++
		case report.StatusSkipped:
			result.StepsSkipped++
		}
	}

	return result
}
