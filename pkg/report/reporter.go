package report

import (
	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
	"github.com/flowctl/orchestrator/pkg/observer"
)

// ArtifactMode controls when a Reporter captures screenshot/hierarchy
// artifacts for a command.
type ArtifactMode int

// ArtifactMode values.
const (
	ArtifactOnFailure ArtifactMode = iota
	ArtifactAlways
	ArtifactNever
)

// Reporter adapts a single flow's observer.Bus lifecycle events onto a
// FlowWriter. One Reporter per flow goroutine - the map it keeps is not
// safe for concurrent use, matching FlowWriter's own single-goroutine
// contract.
//
// The interpreter's observer.Bus carries no element-bounds or screenshot
// data (Metadata.Output is free-form and only AI commands populate it), so
// unlike the command-result based reporting this replaces, Reporter never
// populates Command.Element. Screenshot/hierarchy artifacts are instead
// captured directly from the driver around a command's finish, gated by
// mode.
type Reporter struct {
	writer *FlowWriter
	driver core.Driver
	mode   ArtifactMode
	index  map[flow.Step]int
}

// NewReporter builds a Reporter and the observer.Bus that feeds it. driver
// may be nil, in which case no artifacts are ever captured regardless of
// mode.
func NewReporter(detail *FlowDetail, outputDir string, indexWriter *IndexWriter, driver core.Driver, mode ArtifactMode) (*Reporter, *observer.Bus) {
	r := &Reporter{
		writer: NewFlowWriter(detail, outputDir, indexWriter),
		driver: driver,
		mode:   mode,
		index:  make(map[flow.Step]int, len(detail.Commands)),
	}

	bus := &observer.Bus{
		OnFlowStart:       r.flowStart,
		OnFlowComplete:    r.flowComplete,
		OnCommandStart:    r.commandStart,
		OnCommandComplete: r.commandComplete,
		OnCommandWarned:   r.commandWarned,
		OnCommandSkipped:  r.commandSkipped,
		OnCommandFailed:   r.commandFailed,
	}
	return r, bus
}

// ensureIndex returns raw's Command slot, appending a fresh pending entry
// the first time a step (including one nested inside a repeat/retry/runFlow
// body) is seen.
func (r *Reporter) ensureIndex(raw flow.Step) int {
	if i, ok := r.index[raw]; ok {
		return i
	}
	i := len(r.writer.flow.Commands)
	r.writer.flow.Commands = append(r.writer.flow.Commands, buildCommand(i, raw))
	r.index[raw] = i
	return i
}

func (r *Reporter) flowStart(cmds []flow.Step) {
	r.writer.flow.Commands = buildCommands(cmds)
	r.index = make(map[flow.Step]int, len(cmds))
	for i, s := range cmds {
		r.index[s] = i
	}
	r.writer.Start()
}

func (r *Reporter) flowComplete(success bool) {
	status := StatusPassed
	if !success {
		status = StatusFailed
	}
	r.writer.End(status)
}

func (r *Reporter) commandStart(_ int, raw flow.Step) {
	i := r.ensureIndex(raw)
	r.writer.CommandStart(i)
}

func (r *Reporter) commandComplete(_ int, raw flow.Step) {
	i := r.ensureIndex(raw)
	r.finish(i, raw, StatusPassed, nil)
}

func (r *Reporter) commandWarned(_ int, raw flow.Step, cause error) {
	i := r.ensureIndex(raw)
	// A warned command still lets the flow proceed, so it's reported as
	// passed with its cause recorded for visibility.
	r.finish(i, raw, StatusPassed, errorToReportError(cause))
}

func (r *Reporter) commandSkipped(_ int, raw flow.Step) {
	i := r.ensureIndex(raw)
	r.finish(i, raw, StatusSkipped, nil)
}

func (r *Reporter) commandFailed(_ int, raw flow.Step, err error) observer.Resolution {
	i := r.ensureIndex(raw)
	r.finish(i, raw, StatusFailed, errorToReportError(err))
	return observer.Fail
}

func (r *Reporter) finish(i int, raw flow.Step, status Status, errInfo *Error) {
	artifacts := r.captureArtifacts(i, status)

	var subCommands []Command
	if comp, ok := raw.(flow.CompositeCommand); ok {
		subCommands = r.subCommandsOf(comp)
	}

	r.writer.CommandEndWithSubs(i, status, nil, errInfo, artifacts, subCommands)
}

// subCommandsOf snapshots comp's already-finished children from the flat
// command list. Children execute (and finish) before their parent does, so
// by the time the parent finishes every child's entry - including its own
// nested SubCommands - is already in place.
func (r *Reporter) subCommandsOf(comp flow.CompositeCommand) []Command {
	children := comp.Children()
	if len(children) == 0 {
		return nil
	}
	subs := make([]Command, 0, len(children))
	for _, child := range children {
		if i, ok := r.index[child]; ok && i < len(r.writer.flow.Commands) {
			subs = append(subs, r.writer.flow.Commands[i])
		}
	}
	return subs
}

func (r *Reporter) captureArtifacts(cmdIdx int, status Status) CommandArtifacts {
	var artifacts CommandArtifacts
	if r.driver == nil || r.mode == ArtifactNever {
		return artifacts
	}
	if r.mode == ArtifactOnFailure && status != StatusFailed {
		return artifacts
	}

	if data, err := r.driver.Screenshot(); err == nil && len(data) > 0 {
		if path, saveErr := r.writer.SaveScreenshot(cmdIdx, "after", data); saveErr == nil {
			artifacts.ScreenshotAfter = path
		}
	}
	if status == StatusFailed {
		if data, err := r.driver.Hierarchy(); err == nil && len(data) > 0 {
			if path, saveErr := r.writer.SaveViewHierarchy(cmdIdx, data); saveErr == nil {
				artifacts.ViewHierarchy = path
			}
		}
	}
	return artifacts
}
