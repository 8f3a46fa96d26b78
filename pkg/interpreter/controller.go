package interpreter

import (
	"context"
	"sync"
	"time"
)

// pausePollInterval bounds how often waitIfPaused re-checks the pause flag
// and the ambient cancellation signal.
const pausePollInterval = 500 * time.Millisecond

// FlowController is a single-bit cooperative pause flag shared by one flow
// instance. Parallel flows each own an independent controller.
type FlowController struct {
	mu     sync.Mutex
	paused bool
}

// NewFlowController creates a controller in the running (not paused) state.
func NewFlowController() *FlowController {
	return &FlowController{}
}

// Pause requests the flow suspend before its next command.
func (c *FlowController) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume clears a pending pause request.
func (c *FlowController) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// IsPaused reports the current pause state.
func (c *FlowController) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// WaitIfPaused blocks, polling at pausePollInterval, until either the pause
// flag clears or ctx is cancelled.
func (c *FlowController) WaitIfPaused(ctx context.Context) {
	for c.IsPaused() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(pausePollInterval):
		}
	}
}
