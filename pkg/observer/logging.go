package observer

import (
	"github.com/sirupsen/logrus"

	"github.com/flowctl/orchestrator/pkg/flow"
)

// NewLoggingBus builds a Bus that logs every lifecycle event as a
// structured logrus entry (command index, kind, status, duration where
// known) instead of persisting anything. Combine it with a Reporter's Bus
// via Combine so a run gets both a durable report and a live log stream.
func NewLoggingBus(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Bus{
		OnFlowStart: func(cmds []flow.Step) {
			log.WithField("commands", len(cmds)).Info("flow started")
		},
		OnFlowComplete: func(success bool) {
			log.WithField("success", success).Info("flow completed")
		},
		OnCommandStart: func(idx int, raw flow.Step) {
			log.WithFields(logrus.Fields{
				"index": idx,
				"kind":  raw.Type(),
			}).Debug("command started")
		},
		OnCommandComplete: func(idx int, raw flow.Step) {
			log.WithFields(logrus.Fields{
				"index":  idx,
				"kind":   raw.Type(),
				"status": "passed",
			}).Info("command completed")
		},
		OnCommandWarned: func(idx int, raw flow.Step, cause error) {
			log.WithFields(logrus.Fields{
				"index":  idx,
				"kind":   raw.Type(),
				"status": "warned",
			}).WithError(cause).Warn("command warned")
		},
		OnCommandSkipped: func(idx int, raw flow.Step) {
			log.WithFields(logrus.Fields{
				"index":  idx,
				"kind":   raw.Type(),
				"status": "skipped",
			}).Debug("command skipped")
		},
		OnCommandReset: func(raw flow.Step) {
			log.WithField("kind", raw.Type()).Debug("command reset for next iteration")
		},
		OnCommandFailed: func(idx int, raw flow.Step, err error) Resolution {
			log.WithFields(logrus.Fields{
				"index":  idx,
				"kind":   raw.Type(),
				"status": "failed",
			}).WithError(err).Error("command failed")
			return Fail
		},
	}
}

// Combine multiplexes any number of buses into one: every non-nil callback
// present on any source bus runs, in argument order. OnCommandFailed is
// special since it returns a decision: every source bus's handler still
// runs (so a logging/reporting sink observes the failure), but the
// resolution is whichever of them set OnCommandFailed first - later buses
// never get to relax or tighten an earlier bus's policy.
func Combine(buses ...*Bus) *Bus {
	nonNil := make([]*Bus, 0, len(buses))
	for _, b := range buses {
		if b != nil {
			nonNil = append(nonNil, b)
		}
	}
	if len(nonNil) == 0 {
		return &Bus{}
	}
	if len(nonNil) == 1 {
		return nonNil[0]
	}

	combined := &Bus{
		OnFlowStart: func(cmds []flow.Step) {
			for _, b := range nonNil {
				b.flowStart(cmds)
			}
		},
		OnFlowComplete: func(success bool) {
			for _, b := range nonNil {
				b.flowComplete(success)
			}
		},
		OnCommandStart: func(idx int, raw flow.Step) {
			for _, b := range nonNil {
				b.commandStart(idx, raw)
			}
		},
		OnCommandComplete: func(idx int, raw flow.Step) {
			for _, b := range nonNil {
				b.commandComplete(idx, raw)
			}
		},
		OnCommandWarned: func(idx int, raw flow.Step, cause error) {
			for _, b := range nonNil {
				b.commandWarned(idx, raw, cause)
			}
		},
		OnCommandSkipped: func(idx int, raw flow.Step) {
			for _, b := range nonNil {
				b.commandSkipped(idx, raw)
			}
		},
		OnCommandReset: func(raw flow.Step) {
			for _, b := range nonNil {
				b.commandReset(raw)
			}
		},
		OnCommandMetadataUpdate: func(raw flow.Step, meta *Metadata) {
			for _, b := range nonNil {
				b.metadataUpdate(raw, meta)
			}
		},
		OnCommandGeneratedOutput: func(raw flow.Step, output interface{}) {
			for _, b := range nonNil {
				b.generatedOutput(raw, output)
			}
		},
	}

	combined.OnCommandFailed = func(idx int, raw flow.Step, err error) Resolution {
		resolution := Fail
		resolved := false
		for _, b := range nonNil {
			if b.OnCommandFailed == nil {
				continue
			}
			r := b.OnCommandFailed(idx, raw, err)
			if !resolved {
				resolution = r
				resolved = true
			}
		}
		return resolution
	}

	return combined
}
