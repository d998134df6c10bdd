package core

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// =============================================================================
// Worker process isolation
// =============================================================================

// Marker line a worker process writes on stdout before exiting so the final
// bogo-op count can cross the process boundary alongside the exit status.
const opsMarker = "bogo-ops:"

// WriteOpsMarker emits the final counter in the form Wait parses.
func WriteOpsMarker(ops uint64) {
	fmt.Printf("%s %d\n", opsMarker, ops)
}

// WorkerHandle tracks one spawned worker process. Wait may be called from
// several goroutines (the normal wait path and a kill path racing it); the
// process is reaped exactly once and every caller sees the same outcome.
type WorkerHandle struct {
	Stressor string

	cmd      *exec.Cmd
	stdout   bytes.Buffer
	waitOnce sync.Once
	outcome  ExitOutcome
}

// CompletedHandle returns a handle whose Wait immediately reports the given
// outcome, with no process behind it. Fake spawners in tests use it.
func CompletedHandle(stressor string, outcome ExitOutcome) *WorkerHandle {
	h := &WorkerHandle{Stressor: stressor}
	h.waitOnce.Do(func() { h.outcome = outcome })
	return h
}

// Pid returns the worker's process id, or -1 if it never started.
func (h *WorkerHandle) Pid() int {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return -1
	}
	return h.cmd.Process.Pid
}

// Spawner creates isolated worker processes. Process-level isolation is
// required, not thread-level: a workload may corrupt its own address space
// or call process-terminating primitives, and neither may leak into the
// harness or sibling instances.
type Spawner interface {
	Spawn(stressor string, cfg WorkerConfig) (*WorkerHandle, error)
}

// =============================================================================
// SpawnRetryPolicy
// =============================================================================

// SpawnRetryPolicy bounds how spawn retries transient creation failures.
// Beyond the bound the failure propagates; whether to keep trying is the
// surrounding orchestrator's decision, not the harness's.
type SpawnRetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retry).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// BackoffRatio is the delay multiplier after each retry.
	BackoffRatio float64
}

// DefaultSpawnRetryPolicy returns a sensible default policy.
func DefaultSpawnRetryPolicy() SpawnRetryPolicy {
	return SpawnRetryPolicy{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		BackoffRatio: 2.0,
	}
}

// calculateDelay returns the delay before retry attempt (0-indexed).
func (p SpawnRetryPolicy) calculateDelay(attempt int) time.Duration {
	if p.InitialDelay == 0 {
		return 0
	}

	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.BackoffRatio
	}
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// isTransientSpawnError reports whether a spawn failure is worth retrying
// with the same configuration (temporary resource exhaustion) as opposed to
// a fatal one (missing binary, permissions).
func isTransientSpawnError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ENOMEM)
}

// =============================================================================
// ExecSpawner
// =============================================================================

// ExecSpawner spawns workers by re-executing the harness binary with a hidden
// worker command, giving each stressor instance its own OS process.
type ExecSpawner struct {
	// Binary to execute. Defaults to the current executable.
	Binary string

	// BaseArgs precede the generated worker flags. Defaults to ["worker"].
	BaseArgs []string

	Retry   SpawnRetryPolicy
	Logger  Logger
	Metrics Metrics
}

// NewExecSpawner creates a spawner that re-execs the current binary.
func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{Retry: DefaultSpawnRetryPolicy()}
}

// Spawn starts a worker process for the named stressor. Transient start
// failures are retried with bounded backoff; anything else propagates.
func (s *ExecSpawner) Spawn(stressor string, cfg WorkerConfig) (*WorkerHandle, error) {
	binary := s.Binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("cannot locate harness binary: %w", err)
		}
		binary = exe
	}

	args := s.BaseArgs
	if args == nil {
		args = []string{"worker"}
	}
	args = append(args[:len(args):len(args)], workerArgs(stressor, cfg)...)

	logger := s.Logger
	if logger == nil {
		logger = NewNoOpLogger()
	}
	metrics := s.Metrics
	if metrics == nil {
		metrics = &NilMetrics{}
	}

	var lastErr error
	for attempt := 0; attempt <= s.Retry.MaxRetries; attempt++ {
		handle := &WorkerHandle{Stressor: stressor}
		cmd := exec.Command(binary, args...)
		cmd.Stdout = &handle.stdout
		cmd.Stderr = os.Stderr
		handle.cmd = cmd

		err := cmd.Start()
		if err == nil {
			return handle, nil
		}
		lastErr = err

		if !isTransientSpawnError(err) {
			break
		}
		metrics.RecordSpawnRetry(stressor)
		logger.Warn("worker spawn failed, retrying",
			F("stressor", stressor),
			F("attempt", attempt),
			F("error", err))
		time.Sleep(s.Retry.calculateDelay(attempt))
	}
	return nil, fmt.Errorf("spawn %s worker: %w", stressor, lastErr)
}

// workerArgs renders a WorkerConfig as worker-command flags.
func workerArgs(stressor string, cfg WorkerConfig) []string {
	args := []string{"--stressor", stressor}
	if cfg.MaxOps > 0 {
		args = append(args, "--ops", strconv.FormatUint(cfg.MaxOps, 10))
	}
	if cfg.Timeout > 0 {
		args = append(args, "--timeout", cfg.Timeout.String())
	}
	if cfg.Verify {
		args = append(args, "--verify")
	}
	if cfg.Maximize {
		args = append(args, "--maximize")
	}
	if cfg.Minimize {
		args = append(args, "--minimize")
	}
	if cfg.Settings != nil {
		for _, item := range cfg.Settings.Encode() {
			args = append(args, "--set", item)
		}
	}
	return args
}

// =============================================================================
// Wait and exit-status interpretation
// =============================================================================

// Wait blocks until the worker process exits and interprets its status.
// Exit code 0 is success, 3 is the no-resource skip, anything else is a
// failure; death by signal is reported as Killed. The final bogo-op count is
// recovered from the worker's stdout marker line.
func Wait(h *WorkerHandle) ExitOutcome {
	h.waitOnce.Do(func() {
		h.outcome = h.waitProcess()
	})
	return h.outcome
}

func (h *WorkerHandle) waitProcess() ExitOutcome {
	if h.cmd == nil {
		return ExitOutcome{Status: ExitFailure, Code: -1}
	}
	err := h.cmd.Wait()
	ops := parseOpsMarker(&h.stdout)

	if err == nil {
		return ExitOutcome{Status: ExitSuccess, Ops: ops}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitOutcome{
				Status: ExitKilled,
				Signal: ws.Signal().String(),
				Ops:    ops,
			}
		}
		code := exitErr.ExitCode()
		if code == ExitCodeNoResource {
			return ExitOutcome{Status: ExitNoResource, Code: code, Ops: ops}
		}
		return ExitOutcome{Status: ExitFailure, Code: code, Ops: ops}
	}

	// Wait itself failed; treat as a failure with no usable code.
	return ExitOutcome{Status: ExitFailure, Code: -1, Ops: ops}
}

// Signal forwards a signal to the worker process, if it is running.
func (h *WorkerHandle) Signal(sig os.Signal) error {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return fmt.Errorf("worker has no process")
	}
	return h.cmd.Process.Signal(sig)
}

// KillWait forcefully terminates a worker that ignored early stop: TERM
// first, KILL after the grace period, then reap.
func KillWait(h *WorkerHandle, grace time.Duration) ExitOutcome {
	if h == nil {
		return ExitOutcome{Status: ExitFailure, Code: -1}
	}

	_ = h.Signal(syscall.SIGTERM)

	done := make(chan ExitOutcome, 1)
	go func() { done <- Wait(h) }()

	select {
	case outcome := <-done:
		return outcome
	case <-time.After(grace):
		if h.cmd != nil && h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
		}
		return <-done
	}
}

func parseOpsMarker(buf *bytes.Buffer) uint64 {
	var ops uint64
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, opsMarker) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, opsMarker))
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			ops = n
		}
	}
	return ops
}
