// Package aiengine defines the AI Engine contract used by the
// assertNoDefectsWithAI, assertWithAI, and extractTextWithAI commands, and
// an HTTP-backed implementation of it.
package aiengine

import "context"

// Defect is a single visual or behavioral issue the AI engine reports
// against a screenshot.
type Defect struct {
	Reasoning  string  `json:"reasoning"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Engine is called by assert-no-defects-with-ai, assert-with-ai, and
// extract-text-with-ai. It is only required when a flow contains one of
// those commands; its absence surfaces as CloudApiKeyNotAvailable at the
// command that needed it, never at flow start.
type Engine interface {
	// FindDefects scans screenshot for any visual/UX defects.
	FindDefects(ctx context.Context, screenshot []byte) ([]Defect, error)
	// PerformAssertion checks whether screenshot satisfies assertion, in
	// natural language. A non-nil Defect means the assertion failed.
	PerformAssertion(ctx context.Context, screenshot []byte, assertion string) (*Defect, error)
	// ExtractText answers query about screenshot's content as free text.
	ExtractText(ctx context.Context, screenshot []byte, query string) (string, error)
}
