// Package observer provides the Metadata & Observer Bus: a set of
// pluggable, no-op-default callbacks the interpreter fires around every
// command's lifecycle, plus the per-command metadata table those callbacks
// are keyed against.
package observer

import (
	"github.com/flowctl/orchestrator/pkg/flow"
)

// Resolution tells the interpreter what to do after onCommandFailed runs.
type Resolution int

const (
	// Fail aborts the enclosing flow/sub-flow. This is the default when no
	// OnCommandFailed callback is registered.
	Fail Resolution = iota
	// Continue moves on to the next command in the same command list.
	Continue
)

// Metadata accumulates everything observed about one raw command across its
// (possibly repeated) execution attempts.
type Metadata struct {
	EvaluatedCommand flow.Step
	LogMessages      []string
	Insight          string
	NumberOfRuns     int
	Output           interface{}
}

// Bus is the set of lifecycle callbacks. Every field defaults to nil, which
// the interpreter treats as a no-op (OnCommandFailed's absence defaults to
// Fail instead, matching spec behavior of "default rethrows").
type Bus struct {
	OnFlowStart    func(cmds []flow.Step)
	OnFlowComplete func(success bool)

	OnCommandStart    func(idx int, raw flow.Step)
	OnCommandComplete func(idx int, raw flow.Step)
	OnCommandWarned   func(idx int, raw flow.Step, cause error)
	OnCommandSkipped  func(idx int, raw flow.Step)
	OnCommandReset    func(raw flow.Step)

	// OnCommandFailed decides the flow's fate after an unhandled error.
	// A nil field means Fail (equivalent to "default rethrows").
	OnCommandFailed func(idx int, raw flow.Step, err error) Resolution

	OnCommandMetadataUpdate  func(raw flow.Step, meta *Metadata)
	OnCommandGeneratedOutput func(raw flow.Step, output interface{})
}

func (b *Bus) flowStart(cmds []flow.Step) {
	if b != nil && b.OnFlowStart != nil {
		b.OnFlowStart(cmds)
	}
}

func (b *Bus) flowComplete(success bool) {
	if b != nil && b.OnFlowComplete != nil {
		b.OnFlowComplete(success)
	}
}

func (b *Bus) commandStart(idx int, raw flow.Step) {
	if b != nil && b.OnCommandStart != nil {
		b.OnCommandStart(idx, raw)
	}
}

func (b *Bus) commandComplete(idx int, raw flow.Step) {
	if b != nil && b.OnCommandComplete != nil {
		b.OnCommandComplete(idx, raw)
	}
}

func (b *Bus) commandWarned(idx int, raw flow.Step, cause error) {
	if b != nil && b.OnCommandWarned != nil {
		b.OnCommandWarned(idx, raw, cause)
	}
}

func (b *Bus) commandSkipped(idx int, raw flow.Step) {
	if b != nil && b.OnCommandSkipped != nil {
		b.OnCommandSkipped(idx, raw)
	}
}

func (b *Bus) commandReset(raw flow.Step) {
	if b != nil && b.OnCommandReset != nil {
		b.OnCommandReset(raw)
	}
}

// commandFailed resolves the policy for an unhandled error. A missing
// callback defaults to Fail.
func (b *Bus) commandFailed(idx int, raw flow.Step, err error) Resolution {
	if b != nil && b.OnCommandFailed != nil {
		return b.OnCommandFailed(idx, raw, err)
	}
	return Fail
}

func (b *Bus) metadataUpdate(raw flow.Step, meta *Metadata) {
	if b != nil && b.OnCommandMetadataUpdate != nil {
		b.OnCommandMetadataUpdate(raw, meta)
	}
}

func (b *Bus) generatedOutput(raw flow.Step, output interface{}) {
	if b != nil && b.OnCommandGeneratedOutput != nil {
		b.OnCommandGeneratedOutput(raw, output)
	}
}

// Table tracks Metadata for every raw command seen during a single flow
// run, keyed by the raw command's own identity. It is only ever touched by
// the single goroutine running that flow, so it needs no locking.
type Table struct {
	bus     *Bus
	entries map[flow.Step]*Metadata
}

// NewTable creates an empty metadata table wired to bus (bus may be nil).
func NewTable(bus *Bus) *Table {
	return &Table{bus: bus, entries: make(map[flow.Step]*Metadata)}
}

// Entry returns the metadata for raw, creating it on first access.
func (t *Table) Entry(raw flow.Step) *Metadata {
	m, ok := t.entries[raw]
	if !ok {
		m = &Metadata{}
		t.entries[raw] = m
	}
	return m
}

// AppendLog records a console message against raw's metadata and notifies
// the bus of the update.
func (t *Table) AppendLog(raw flow.Step, msg string) {
	m := t.Entry(raw)
	m.LogMessages = append(m.LogMessages, msg)
	t.bus.metadataUpdate(raw, m)
}

// SetInsight records an insight string (e.g. a warning reason) against raw.
func (t *Table) SetInsight(raw flow.Step, insight string) {
	m := t.Entry(raw)
	m.Insight = insight
	t.bus.metadataUpdate(raw, m)
}

// SetEvaluatedCommand records the post-substitution form of raw.
func (t *Table) SetEvaluatedCommand(raw flow.Step, evaluated flow.Step) {
	m := t.Entry(raw)
	m.EvaluatedCommand = evaluated
	t.bus.metadataUpdate(raw, m)
}

// IncrementRuns bumps raw's numberOfRuns counter (repeat iterations).
func (t *Table) IncrementRuns(raw flow.Step) {
	m := t.Entry(raw)
	m.NumberOfRuns++
	t.bus.metadataUpdate(raw, m)
}

// GeneratedOutput records output produced by raw (e.g. AI assertion
// defects, extractTextWithAI results) and notifies the bus.
func (t *Table) GeneratedOutput(raw flow.Step, output interface{}) {
	m := t.Entry(raw)
	m.Output = output
	t.bus.generatedOutput(raw, output)
}
