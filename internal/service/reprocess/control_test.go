package reprocess

import (
	"sync"
	"testing"
)

func TestControl_InitialState(t *testing.T) {
	t.Parallel()

	c := NewControl()
	if c.ShouldPause() || c.ShouldCancel() {
		t.Error("new control should be running")
	}
	if c.Status() != StatusRunning {
		t.Errorf("status = %q, want %q", c.Status(), StatusRunning)
	}
}

func TestControl_PauseResume(t *testing.T) {
	t.Parallel()

	c := NewControl()
	c.RequestPause()
	if !c.ShouldPause() {
		t.Error("pause request not visible")
	}
	if c.Status() != StatusPaused {
		t.Errorf("status = %q, want %q", c.Status(), StatusPaused)
	}

	c.Resume()
	if c.ShouldPause() {
		t.Error("resume did not clear pause")
	}
	if c.Status() != StatusRunning {
		t.Errorf("status = %q, want %q", c.Status(), StatusRunning)
	}
}

func TestControl_CancelIsTerminal(t *testing.T) {
	t.Parallel()

	c := NewControl()
	c.RequestCancel()
	if !c.ShouldCancel() {
		t.Error("cancel request not visible")
	}

	// Neither pause nor resume may revive a cancelled control.
	c.RequestPause()
	if c.ShouldPause() {
		t.Error("pause accepted after cancel")
	}
	c.Resume()
	if !c.ShouldCancel() || c.Status() != StatusCancelled {
		t.Error("resume revived a cancelled control")
	}
}

func TestControl_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewControl()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.RequestPause()
				c.Resume()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = c.ShouldPause()
				_ = c.ShouldCancel()
				_ = c.Status()
			}
		}()
	}
	wg.Wait()

	c.RequestCancel()
	if !c.ShouldCancel() {
		t.Error("cancel lost after concurrent churn")
	}
}
