package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error taxonomy
// =============================================================================

var (
	// ErrNoResource marks a bounded-resource failure (allocation, thread or
	// process creation limit). The worker reports it and exits with a
	// "skipped, no resource" outcome instead of treating it as a logic bug.
	ErrNoResource = errors.New("out of resources")

	// ErrHandlerInstall marks a failed deadline-controller arm. Fatal to the
	// worker instance; the worker must not start its loop.
	ErrHandlerInstall = errors.New("deadline handler install failed")

	// ErrSync marks misuse of a synchronization object, such as touching the
	// pool counter after the owning process released it. Never recovered;
	// the worker terminates immediately.
	ErrSync = errors.New("synchronization failure")
)

// =============================================================================
// ExitOutcome: the only value that crosses the worker process boundary
// =============================================================================

// ExitStatus classifies how a worker instance ended.
type ExitStatus int

const (
	ExitSuccess ExitStatus = iota
	ExitFailure
	ExitNoResource
	ExitKilled
)

// Worker process exit codes. NoResource deliberately leaves a gap so scripts
// can tell it apart from an ordinary failure.
const (
	ExitCodeSuccess    = 0
	ExitCodeFailure    = 1
	ExitCodeNoResource = 3
)

func (s ExitStatus) String() string {
	switch s {
	case ExitSuccess:
		return "success"
	case ExitFailure:
		return "failure"
	case ExitNoResource:
		return "no-resource"
	case ExitKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ExitOutcome reports one finished worker instance. Errors inside the worker
// are resolved where they occur; only this coarse summary is handed back to
// the harness.
type ExitOutcome struct {
	Status ExitStatus
	Code   int    // process exit code, meaningful for Failure
	Signal string // terminating signal, meaningful for Killed
	Ops    uint64 // final bogo-op counter
}

// ExitCode maps an outcome back to the worker process exit code.
func (o ExitOutcome) ExitCode() int {
	switch o.Status {
	case ExitSuccess:
		return ExitCodeSuccess
	case ExitNoResource:
		return ExitCodeNoResource
	default:
		return ExitCodeFailure
	}
}

// StatusFromError maps a stressor error to an exit status.
func StatusFromError(err error) ExitStatus {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrNoResource):
		return ExitNoResource
	default:
		return ExitFailure
	}
}
