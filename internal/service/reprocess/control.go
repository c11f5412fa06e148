package reprocess

import "sync/atomic"

// Control statuses reported to progress consumers.
const (
	StatusRunning   = "running"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
)

// Control is the cooperative pause/cancel handle for one batch run. It is
// owned by the caller and handed to Run explicitly; the orchestration loop
// polls it at checkpoints between employees while an API handler mutates
// it from another goroutine, so the flags are atomics rather than plain
// fields.
//
// Cancellation is terminal: once cancelled, a control never resumes.
type Control struct {
	pause  atomic.Bool
	cancel atomic.Bool
	status atomic.Value
}

// NewControl returns a control in the running state.
func NewControl() *Control {
	c := &Control{}
	c.status.Store(StatusRunning)
	return c
}

// RequestPause asks the loop to hold at its next checkpoint. Ignored after
// cancellation.
func (c *Control) RequestPause() {
	if c.cancel.Load() {
		return
	}
	c.pause.Store(true)
	c.status.Store(StatusPaused)
}

// Resume clears a pause request. Ignored after cancellation.
func (c *Control) Resume() {
	if c.cancel.Load() {
		return
	}
	c.pause.Store(false)
	c.status.Store(StatusRunning)
}

// RequestCancel terminates the batch at its next checkpoint. Work already
// committed for completed employees is preserved.
func (c *Control) RequestCancel() {
	c.cancel.Store(true)
	c.pause.Store(false)
	c.status.Store(StatusCancelled)
}

// ShouldPause reports whether a pause is requested.
func (c *Control) ShouldPause() bool { return c.pause.Load() }

// ShouldCancel reports whether the batch is cancelled.
func (c *Control) ShouldCancel() bool { return c.cancel.Load() }

// Status returns the current control state string.
func (c *Control) Status() string {
	s, _ := c.status.Load().(string)
	return s
}
