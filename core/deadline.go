package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// DeadlineController: wall-clock expiry -> one cooperative cancellation event
// =============================================================================

// DeadlineController converts a wall-clock deadline into a single cooperative
// cancellation event. The original design delivered SIGALRM into a saved-jump
// handler that unwound the stack asynchronously; that bypasses structured
// cleanup and can interrupt a non-reentrant call mid-mutation, so here the
// expiry path only flips a guarded flag the worker loop polls at its
// boundaries. A very long uninterruptible work unit may therefore overrun
// the deadline; that tradeoff buys the absence of torn-state hazards.
//
// A controller covers exactly one worker-execution window. It must not be
// reused across workers; a stale armed deadline must never outlive its
// worker, which Disarm guarantees on every exit path.
type DeadlineController struct {
	mu    sync.Mutex
	timer *time.Timer
	armed bool

	// fired gates the cancellation action: no matter how many expiries or
	// manual cancels are delivered, the event is recorded exactly once.
	fired     atomic.Bool
	cancelled chan struct{}
}

// NewDeadlineController creates a disarmed controller.
func NewDeadlineController() *DeadlineController {
	return &DeadlineController{cancelled: make(chan struct{})}
}

// Arm installs the deadline timer. Arming twice, or with a non-positive
// timeout, fails with ErrHandlerInstall and the worker must not proceed.
func (d *DeadlineController) Arm(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: non-positive timeout %v", ErrHandlerInstall, timeout)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armed {
		return fmt.Errorf("%w: controller already armed", ErrHandlerInstall)
	}
	d.timer = time.AfterFunc(timeout, d.Cancel)
	d.armed = true
	return nil
}

// Cancel records the cancellation event. Safe from any goroutine, any number
// of times; only the first call closes the event channel. This is also the
// hook the orchestrator uses for early stop of an in-process worker.
func (d *DeadlineController) Cancel() {
	if d.fired.CompareAndSwap(false, true) {
		close(d.cancelled)
	}
}

// Pending reports whether the cancellation event has been recorded.
func (d *DeadlineController) Pending() bool {
	return d.fired.Load()
}

// Cancelled returns a channel closed when cancellation is recorded.
func (d *DeadlineController) Cancelled() <-chan struct{} {
	return d.cancelled
}

// Disarm stops the timer. Safe when Arm never completed or was never called,
// and safe to call repeatedly. The pending flag is deliberately left alone:
// the controller's window is over and a late observer must still see that
// cancellation happened.
func (d *DeadlineController) Disarm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed = false
}
