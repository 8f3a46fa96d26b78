package report

import "github.com/flowctl/orchestrator/pkg/core"

// errorToReportError converts an error raised while interpreting a command
// into the persisted report.Error shape. DomainError and ExecutionError
// carry enough structure to fill Type/Message/Details; anything else is
// reported as a generic unknown error rather than dropped.
func errorToReportError(err error) *Error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *core.DomainError:
		return &Error{
			Type:    e.Kind.String(),
			Message: e.Message,
			Details: e.DebugMessage,
		}
	case *core.ExecutionError:
		return &Error{
			Type:    e.Code,
			Message: e.Error(),
		}
	default:
		return &Error{
			Type:    "unknown",
			Message: err.Error(),
		}
	}
}
