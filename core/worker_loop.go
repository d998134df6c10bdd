package core

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// =============================================================================
// Worker execution window
// =============================================================================

// RunWorker drives one stressor instance through its full execution window:
// arm the deadline, transition to RUN, hand control to the stressor's loop,
// then converge on a single teardown routine no matter how the loop ended
// (natural completion, op limit, cooperative cancellation, error, panic).
//
// RunWorker is meant to execute inside an isolated worker process (see
// ExecSpawner); nothing it touches is shared with the parent.
func RunWorker(info *Info, cfg WorkerConfig) ExitOutcome {
	wc := NewWorkerContext(info.Name, cfg)

	// Teardown must run exactly once and is shared by every exit path,
	// including a second cancellation racing the first.
	var teardownOnce sync.Once
	teardown := func() {
		teardownOnce.Do(func() {
			wc.deadline.Disarm()
			wc.setState(StateDeinit)
		})
	}
	defer teardown()

	if cfg.Timeout > 0 {
		if err := wc.deadline.Arm(cfg.Timeout); err != nil {
			wc.logger.Error("cannot arm deadline",
				F("stressor", info.Name),
				F("error", err))
			return ExitOutcome{Status: ExitFailure, Code: ExitCodeFailure}
		}
	}

	wc.setState(StateRun)
	if cfg.OnStart != nil {
		cfg.OnStart(wc)
	}
	err := runContained(info, wc)
	teardown()

	status := StatusFromError(err)
	if err != nil && status != ExitSuccess {
		logVerb := "failed"
		if status == ExitNoResource {
			logVerb = "skipped, no resource"
		}
		wc.logger.Warn("stressor "+logVerb,
			F("stressor", info.Name),
			F("error", err))
	}

	outcome := ExitOutcome{Status: status, Ops: wc.Counter()}
	outcome.Code = outcome.ExitCode()
	wc.metrics.RecordWorkerExit(info.Name, status)
	return outcome
}

// runContained invokes the stressor's run function with panic containment.
// A panicking work unit becomes a worker failure, never an escape into the
// harness.
func runContained(info *Info, wc *WorkerContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			wc.panics.HandlePanic(info.Name, r, debug.Stack())
			err = &panicError{value: r}
		}
	}()
	return info.Run(wc)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("stressor panicked: %v", e.value)
}
