package interpreter

import (
	"context"
	"fmt"
	"time"

	"github.com/flowctl/orchestrator/pkg/core"
	"github.com/flowctl/orchestrator/pkg/flow"
)

// defaultScrollTimeout bounds a scrollUntilVisible search when the step
// carries no explicit timeout of its own.
const defaultScrollTimeout = 20 * time.Second

// defaultMaxScrolls caps the number of scroll gestures attempted when the
// step doesn't set one explicitly.
const defaultMaxScrolls = 10

// defaultVisibilityPercentage is the visiblePct an element must clear when
// the step doesn't request a specific one.
const defaultVisibilityPercentage = 100

// centerElementWindow is how many of the earliest attempts get to use the
// more lenient "just barely visible and roughly centered" early-exit that
// centerElement enables.
const centerElementWindow = 4

// executeScrollUntilVisible moved out of the uiautomator2 driver: drivers
// only expose a single swipe-and-look primitive; the grid search, visible
// percentage threshold, and centerElement early-exit all live here so every
// driver gets identical behavior.
func (in *Interpreter) executeScrollUntilVisible(ctx context.Context, step *flow.ScrollUntilVisibleStep) (bool, error) {
	timeout := time.Duration(step.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultScrollTimeout
	}
	maxScrolls := step.MaxScrolls
	if maxScrolls <= 0 {
		maxScrolls = defaultMaxScrolls
	}
	visibilityThreshold := step.VisibilityPercentage
	if visibilityThreshold <= 0 {
		visibilityThreshold = defaultVisibilityPercentage
	}

	screen := in.screenBounds()
	deadline := time.Now().Add(timeout)

	for attempt := 0; attempt < maxScrolls; attempt++ {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if time.Now().After(deadline) {
			break
		}

		result := in.driver.Execute(&flow.AssertVisibleStep{BaseStep: step.BaseStep, Selector: step.Element})
		if result.Success && result.Element != nil {
			visiblePct := visiblePercent(result.Element.Bounds, screen)
			if step.CenterElement && attempt < centerElementWindow && visiblePct > 10 && nearCenter(result.Element.Bounds, screen) {
				return true, nil
			}
			if visiblePct >= visibilityThreshold {
				return true, nil
			}
		}

		swipe := &flow.SwipeStep{
			BaseStep:              step.BaseStep,
			Direction:             step.Direction,
			Speed:                 step.Speed,
			WaitToSettleTimeoutMs: step.WaitToSettleTimeoutMs,
		}
		if swipeResult := in.driver.Execute(swipe); !swipeResult.Success {
			return false, driverFailure(swipeResult, "could not scroll")
		}
	}

	return false, core.NewDomainError(core.ElementNotFound, "element did not become visible while scrolling").
		WithDetails(fmt.Sprintf("tried %d scrolls, timeout=%s, speed=%d, visibilityPercentage>=%d, centerElement=%t, direction=%s",
			maxScrolls, timeout, step.Speed, visibilityThreshold, step.CenterElement, step.Direction))
}

func (in *Interpreter) screenBounds() core.Bounds {
	info := in.driver.GetPlatformInfo()
	if info == nil {
		return core.Bounds{}
	}
	return core.Bounds{Width: info.ScreenWidth, Height: info.ScreenHeight}
}

// visiblePercent is the intersection area of elem with screen, as a
// percentage of elem's own area.
func visiblePercent(elem, screen core.Bounds) int {
	if elem.Area() == 0 || screen.Width == 0 || screen.Height == 0 {
		return 0
	}
	x0 := maxInt(elem.X, screen.X)
	y0 := maxInt(elem.Y, screen.Y)
	x1 := minInt(elem.X+elem.Width, screen.X+screen.Width)
	y1 := minInt(elem.Y+elem.Height, screen.Y+screen.Height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	intersection := (x1 - x0) * (y1 - y0)
	return intersection * 100 / elem.Area()
}

// nearCenter reports whether elem's center sits within the middle third of
// the screen along both axes.
func nearCenter(elem, screen core.Bounds) bool {
	if screen.Width == 0 || screen.Height == 0 {
		return false
	}
	cx, cy := elem.Center()
	marginX := screen.Width / 3
	marginY := screen.Height / 3
	return cx >= screen.X+marginX && cx <= screen.X+screen.Width-marginX &&
		cy >= screen.Y+marginY && cy <= screen.Y+screen.Height-marginY
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
