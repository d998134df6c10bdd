package core

import (
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Nested thread pool
// =============================================================================
//
// Some stressors express one "work unit" as a set of coordinated OS threads
// racing to observe a shared termination primitive. The pool deliberately has
// no per-thread join protocol: its normal exit and its cancelled exit are the
// same code path, an immediate whole-process termination. Threads never
// return normally. The rewrite keeps that contract but isolates the
// termination call behind a named primitive so tests can intercept it.

// Terminator ends the whole process now. It must not return.
type Terminator func(code int)

// defaultPoolSize matches the original 16-thread race.
const defaultPoolSize = 16

// defaultPoolSleep is the tiny delay pool threads spin on.
const defaultPoolSleep = 10 * time.Microsecond

// defaultStartPolls bounds the control thread's startup wait.
const defaultStartPolls = 1000

// PoolSync is the one piece of state pool threads share: a mutex-guarded
// started counter. It is created by the worker process before any pool
// thread exists and released by its owner only after the pool's process has
// exited; any use after release is a synchronization error, never recovered.
type PoolSync struct {
	mu       sync.Mutex
	started  int
	target   int
	released atomic.Bool
}

// NewPoolSync creates pool synchronization state for a target thread count.
func NewPoolSync(target int) *PoolSync {
	return &PoolSync{target: target}
}

// MarkStarted records one thread as started. The counter only moves under
// the mutex and never exceeds the target.
func (p *PoolSync) MarkStarted() error {
	if p.released.Load() {
		return ErrSync
	}
	p.mu.Lock()
	if p.started < p.target {
		p.started++
	}
	p.mu.Unlock()
	return nil
}

// Started returns the current started count. Callers polling outside the
// increment path get a snapshot that may already be stale; they re-check.
func (p *PoolSync) Started() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Target returns the requested thread count.
func (p *PoolSync) Target() int { return p.target }

// Release marks the state destroyed. Only the owner calls it, and only after
// the process that ran the pool has exited.
func (p *PoolSync) Release() {
	p.released.Store(true)
}

// ThreadPoolConfig configures RunPool. Zero values select the defaults that
// match the original behavior.
type ThreadPoolConfig struct {
	// Size is the target thread count. Defaults to 16.
	Size int

	// Terminate is the forced whole-process termination primitive.
	// Defaults to os.Exit.
	Terminate Terminator

	// CreateThread starts fn on a new OS thread. The default locks a
	// goroutine to an OS thread. An ErrNoResource return stops further
	// creation but is not fatal; any other error terminates the worker.
	CreateThread func(fn func()) error

	// SleepInterval is the polling delay. Defaults to 10µs.
	SleepInterval time.Duration

	// StartPolls bounds the startup wait. Defaults to 1000 polls; the bound
	// is advisory, exceeding it proceeds to termination anyway.
	StartPolls int
}

func (cfg *ThreadPoolConfig) fillDefaults() {
	if cfg.Size <= 0 {
		cfg.Size = defaultPoolSize
	}
	if cfg.Terminate == nil {
		cfg.Terminate = os.Exit
	}
	if cfg.CreateThread == nil {
		cfg.CreateThread = osThread
	}
	if cfg.SleepInterval <= 0 {
		cfg.SleepInterval = defaultPoolSleep
	}
	if cfg.StartPolls <= 0 {
		cfg.StartPolls = defaultStartPolls
	}
}

func osThread(fn func()) error {
	go func() {
		runtime.LockOSThread()
		fn()
	}()
	return nil
}

// RunPool runs the nested thread pool inside a worker process and never
// returns through a normal path: every exit, started or cancelled, degraded
// or complete, is a Terminate call.
//
// Each thread bumps the shared started counter under the mutex, then spins
// on the cooperative keep-running flag until every created thread has
// started or cancellation arrives, and finally races its siblings to
// terminate the whole process.
func RunPool(wc *WorkerContext, ps *PoolSync, cfg ThreadPoolConfig) {
	cfg.fillDefaults()

	created := 0
	for i := 0; i < cfg.Size; i++ {
		err := cfg.CreateThread(func() { poolThread(wc, ps, cfg) })
		if err != nil {
			if errors.Is(err, ErrNoResource) {
				// Out of thread resources: run degraded with the
				// threads we already have.
				break
			}
			wc.Logger().Error("pool thread creation failed",
				F("stressor", wc.Name()),
				F("error", err))
			cfg.Terminate(ExitCodeFailure)
			return
		}
		created++
		if !wc.KeepStressing() {
			break
		}
	}
	wc.Metrics().RecordPoolThreads(wc.Name(), created)

	// Wait until every created thread has checked in, or give up after the
	// poll bound. The bound is advisory; timing out is not an error.
	for j := 0; j < cfg.StartPolls; j++ {
		if !wc.KeepStressing() {
			break
		}
		if ps.Started() >= created {
			break
		}
		time.Sleep(cfg.SleepInterval)
	}
	cfg.Terminate(ExitCodeSuccess)
}

func poolThread(wc *WorkerContext, ps *PoolSync, cfg ThreadPoolConfig) {
	if err := ps.MarkStarted(); err != nil {
		// Lock state is unusable; tear the whole process down rather than
		// limp along on a possibly corrupt primitive.
		cfg.Terminate(ExitCodeFailure)
		return
	}
	for wc.KeepStressing() && ps.Started() < ps.Target() {
		time.Sleep(cfg.SleepInterval)
	}
	cfg.Terminate(ExitCodeSuccess)
}
