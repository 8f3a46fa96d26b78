// Package mock provides a mock implementation of core.Driver for running
// flows without a real device (--platform mock / --driver mock). Element
// targeting is real: steps carrying a selector are matched against a small
// synthetic hierarchy through pkg/selector, the same selector-and-filter
// algebra the real drivers' pagesource matchers implement, so a flow that
// exercises tapOn/assertVisible/scrollUntilVisible against the mock
// hierarchy gets the same found/not-found semantics it would against a
// device.
package mock

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
	"github.com/flowctl/orchestrator/pkg/selector"
)

// Driver is a mock implementation of core.Driver for testing.
type Driver struct {
	Config Config

	stepCount int
	root      *selector.Node
	matching  bool
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnStep makes step N fail (1-indexed). 0 = never fail.
	FailOnStep int
	// StepDelay adds artificial delay per step
	StepDelay time.Duration
	// Platform info to report
	Platform string
	DeviceID string
	// Hierarchy, when set, makes Execute resolve selector-bearing steps
	// against it through pkg/selector for real found/not-found semantics.
	// Left nil, every selector-bearing step simply succeeds - the
	// behavior callers that only need FailOnStep-driven pass/fail (e.g.
	// flow-control unit tests) rely on.
	Hierarchy *selector.Node
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.Platform == "" {
		cfg.Platform = "mock"
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "mock-device"
	}
	root := cfg.Hierarchy
	matching := root != nil
	if root == nil {
		root = defaultHierarchy()
	}
	return &Driver{Config: cfg, root: root, matching: matching}
}

// defaultHierarchy returns a small synthetic screen: a scrollable list
// containing a clickable "Mock Element" button, enough for the common
// tapOn/assertVisible/scrollUntilVisible flows to resolve against.
func defaultHierarchy() *selector.Node {
	return &selector.Node{
		ClassName: "View",
		Bounds:    core.Bounds{X: 0, Y: 0, Width: 1080, Height: 2400},
		Enabled:   true,
		Children: []*selector.Node{
			{
				ID:         "mock-element",
				ClassName:  "Button",
				Text:       "Mock Element",
				Bounds:     core.Bounds{X: 100, Y: 200, Width: 200, Height: 50},
				Enabled:    true,
				Clickable:  true,
				Scrollable: false,
			},
		},
	}
}

// Execute simulates executing a step. Steps that carry a selector are
// resolved against d.root via selector.Find; an unresolved required
// selector fails the step the way a real driver's timeout would, an
// unresolved optional one succeeds as a no-op.
func (d *Driver) Execute(step flow.Step) *core.CommandResult {
	d.stepCount++
	start := time.Now()

	if d.Config.StepDelay > 0 {
		time.Sleep(d.Config.StepDelay)
	}

	if d.Config.FailOnStep > 0 && d.stepCount == d.Config.FailOnStep {
		return &core.CommandResult{
			Success:  false,
			Duration: time.Since(start),
			Error:    fmt.Errorf("mock failure on step %d", d.stepCount),
			Message:  fmt.Sprintf("Simulated failure on step %d (%s)", d.stepCount, step.Type()),
		}
	}

	if sel, isAssertNotVisible := selectorFor(step); d.matching && sel != nil {
		node, err := selector.Find(d.root, *sel)
		switch {
		case err == nil && isAssertNotVisible:
			return &core.CommandResult{
				Success:  false,
				Duration: time.Since(start),
				Error:    err,
				Message:  fmt.Sprintf("expected %s not visible, but it was found", selector.Describe(*sel)),
			}
		case err != nil && isAssertNotVisible:
			return &core.CommandResult{Success: true, Duration: time.Since(start), Message: "element not visible, as expected"}
		case err != nil && step.IsOptional():
			return &core.CommandResult{Success: true, Duration: time.Since(start), Message: "optional selector not found, skipped"}
		case err != nil:
			return &core.CommandResult{Success: false, Duration: time.Since(start), Error: err, Message: err.Error()}
		default:
			return &core.CommandResult{
				Success:  true,
				Duration: time.Since(start),
				Message:  fmt.Sprintf("Mock executed: %s", step.Type()),
				Element:  nodeToElementInfo(node),
			}
		}
	}

	return &core.CommandResult{
		Success:  true,
		Duration: time.Since(start),
		Message:  fmt.Sprintf("Mock executed: %s", step.Type()),
	}
}

// selectorFor extracts the selector a step targets, if any, and whether
// the step is assertNotVisible (whose success/failure polarity inverts
// relative to every other selector-bearing step).
func selectorFor(step flow.Step) (*flow.Selector, bool) {
	switch s := step.(type) {
	case *flow.TapOnStep:
		return &s.Selector, false
	case *flow.DoubleTapOnStep:
		return &s.Selector, false
	case *flow.LongPressOnStep:
		return &s.Selector, false
	case *flow.AssertVisibleStep:
		return &s.Selector, false
	case *flow.AssertNotVisibleStep:
		return &s.Selector, true
	case *flow.InputTextStep:
		return &s.Selector, false
	case *flow.CopyTextFromStep:
		return &s.Selector, false
	case *flow.ScrollUntilVisibleStep:
		return &s.Element, false
	default:
		return nil, false
	}
}

func nodeToElementInfo(n *selector.Node) *core.ElementInfo {
	return &core.ElementInfo{
		ID:      n.ID,
		Text:    n.Text,
		Visible: true,
		Enabled: n.Enabled,
		Bounds:  n.Bounds,
	}
}

// Screenshot returns a mock PNG image.
func (d *Driver) Screenshot() ([]byte, error) {
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}, nil
}

// hierarchyDump is the JSON shape Hierarchy() reports - a simplified,
// driver-agnostic projection of selector.Node suitable for inspection
// tooling (dump-view-hierarchy, AI analysis) that doesn't need the
// internal Parent back-reference.
type hierarchyDump struct {
	Type     string          `json:"type"`
	ID       string          `json:"id,omitempty"`
	Text     string          `json:"text,omitempty"`
	Bounds   core.Bounds     `json:"bounds"`
	Children []hierarchyDump `json:"children,omitempty"`
}

func dump(n *selector.Node) hierarchyDump {
	d := hierarchyDump{Type: n.ClassName, ID: n.ID, Text: n.Text, Bounds: n.Bounds}
	for _, c := range n.Children {
		d.Children = append(d.Children, dump(c))
	}
	return d
}

// Hierarchy returns the mock view hierarchy as JSON.
func (d *Driver) Hierarchy() ([]byte, error) {
	return json.Marshal(dump(d.root))
}

// GetState returns mock device state.
func (d *Driver) GetState() *core.StateSnapshot {
	return &core.StateSnapshot{
		AppState:    "foreground",
		Orientation: "portrait",
	}
}

// GetPlatformInfo returns mock platform info.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Platform:     d.Config.Platform,
		DeviceID:     d.Config.DeviceID,
		DeviceName:   "Mock Device",
		OSVersion:    "1.0",
		IsSimulator:  true,
		ScreenWidth:  1080,
		ScreenHeight: 2400,
	}
}

// SetFindTimeout is a no-op for the mock driver; it never actually polls.
func (d *Driver) SetFindTimeout(ms int) {}

// IsUnicodeInputSupported mirrors the real drivers: every platform but iOS
// can type non-ASCII text.
func (d *Driver) IsUnicodeInputSupported() bool {
	return d.Config.Platform != "ios"
}
