package runner

import (
	"context"
	"sync"
	"time"
)

// Control manages pause/resume/stop coordination between a controlling
// goroutine and the emulation loop.
type Control struct {
	mu       sync.Mutex
	pauseReq bool
	paused   bool
	stopReq  bool
	ackCh    chan struct{}
}

// NewControl creates a new emulation control.
func NewControl() *Control {
	return &Control{
		ackCh: make(chan struct{}, 1),
	}
}

// RequestPause asks the loop to pause and blocks until it acknowledges
// the pause, the loop stops or ctx ends.
func (c *Control) RequestPause(ctx context.Context) error {
	c.mu.Lock()
	if c.paused || c.pauseReq || c.stopReq {
		c.mu.Unlock()
		return nil
	}
	c.pauseReq = true
	c.mu.Unlock()

	select {
	case <-c.ackCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestResume tells the loop to resume.
func (c *Control) RequestResume() {
	c.mu.Lock()
	c.pauseReq = false
	c.paused = false
	c.mu.Unlock()
}

// Stop signals the loop to exit.
func (c *Control) Stop() {
	c.mu.Lock()
	c.stopReq = true
	c.pauseReq = false
	c.mu.Unlock()
	select {
	case c.ackCh <- struct{}{}:
	default:
	}
}

// IsPaused returns true if the loop is currently paused.
func (c *Control) IsPaused() bool {
	c.mu.Lock()
	p := c.paused
	c.mu.Unlock()
	return p
}

// checkPause is called by the loop between frames. If a pause has been
// requested it acknowledges and waits until resumed or stopped. Returns
// false if the loop should exit.
func (c *Control) checkPause(ctx context.Context) bool {
	c.mu.Lock()
	if c.stopReq {
		c.mu.Unlock()
		return false
	}
	if !c.pauseReq {
		c.mu.Unlock()
		return true
	}
	c.paused = true
	c.mu.Unlock()

	select {
	case c.ackCh <- struct{}{}:
	default:
	}

	for {
		c.mu.Lock()
		if c.stopReq {
			c.mu.Unlock()
			return false
		}
		if !c.pauseReq {
			c.paused = false
			c.mu.Unlock()
			return true
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
