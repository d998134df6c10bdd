package core

import (
	"sync/atomic"
	"time"
)

// =============================================================================
// WorkerContext: identity and state of one running stressor instance
// =============================================================================

// WorkerState is the lifecycle state of a worker instance.
type WorkerState int32

const (
	StateInit WorkerState = iota
	StateRun
	StateDeinit
)

func (s WorkerState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRun:
		return "run"
	case StateDeinit:
		return "deinit"
	default:
		return "unknown"
	}
}

// WorkerConfig configures one worker instance.
type WorkerConfig struct {
	// MaxOps stops the worker after this many bogo-operations. 0 = unbounded.
	MaxOps uint64

	// Timeout arms the deadline controller before the loop starts.
	// 0 = no deadline.
	Timeout time.Duration

	// Verify asks the stressor to run its verification step after each work
	// unit, when the stressor supports it.
	Verify bool

	// Maximize / Minimize pick parameter extremes for stressors whose sizing
	// option was not set explicitly.
	Maximize bool
	Minimize bool

	// Stop is an optional externally supplied early-stop signal from the
	// surrounding orchestrator. A nil channel never fires.
	Stop <-chan struct{}

	// OnStart, when set, receives the live WorkerContext just before the
	// stressor loop begins. Snapshot pollers hook in here.
	OnStart func(*WorkerContext)

	Settings *Settings
	Logger   Logger
	Metrics  Metrics
	Panics   PanicHandler
}

// WorkerContext identifies one running stressor instance. It is owned
// exclusively by the worker process that created it and never crosses a
// process boundary; the parent only ever sees the ExitOutcome.
type WorkerContext struct {
	name     string
	maxOps   uint64
	verify   bool
	maximize bool
	minimize bool

	// counter is the monotone bogo-op count. Incremented only by the single
	// goroutine driving the main loop; read by snapshot pollers.
	counter        atomic.Uint64
	verifyFailures atomic.Uint64
	state          atomic.Int32

	deadline *DeadlineController
	stop     <-chan struct{}

	settings *Settings
	logger   Logger
	metrics  Metrics
	panics   PanicHandler
}

// NewWorkerContext creates the context for one stressor instance. The
// deadline controller is created here, disarmed; RunWorker arms it.
func NewWorkerContext(name string, cfg WorkerConfig) *WorkerContext {
	wc := &WorkerContext{
		name:     name,
		maxOps:   cfg.MaxOps,
		verify:   cfg.Verify,
		maximize: cfg.Maximize,
		minimize: cfg.Minimize,
		deadline: NewDeadlineController(),
		stop:     cfg.Stop,
		settings: cfg.Settings,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		panics:   cfg.Panics,
	}
	if wc.settings == nil {
		wc.settings = NewSettings()
	}
	if wc.logger == nil {
		wc.logger = NewDefaultLogger()
	}
	if wc.metrics == nil {
		wc.metrics = &NilMetrics{}
	}
	if wc.panics == nil {
		wc.panics = &DefaultPanicHandler{Logger: wc.logger}
	}
	return wc
}

// Name returns the stressor name this worker runs.
func (wc *WorkerContext) Name() string { return wc.name }

// Counter returns the current bogo-op count.
func (wc *WorkerContext) Counter() uint64 { return wc.counter.Load() }

// IncCounter records one completed bogo-operation. Call it only from the
// single goroutine driving the main loop; nested pool threads have their own
// mutex-guarded started counter and never touch this one.
func (wc *WorkerContext) IncCounter() {
	wc.counter.Add(1)
	wc.metrics.RecordOp(wc.name)
}

// KeepStressing is the continuation predicate: true only while the op limit
// has not been reached, the deadline has not fired, and the orchestrator has
// not requested early stop. Evaluate it at the top of every loop iteration
// and at coarse checkpoints inside long work units.
func (wc *WorkerContext) KeepStressing() bool {
	if wc.maxOps > 0 && wc.counter.Load() >= wc.maxOps {
		return false
	}
	if wc.deadline.Pending() {
		return false
	}
	select {
	case <-wc.stop:
		return false
	default:
	}
	return true
}

// Deadline returns this worker's deadline controller.
func (wc *WorkerContext) Deadline() *DeadlineController { return wc.deadline }

// VerifyEnabled reports whether the verification layer should run.
func (wc *WorkerContext) VerifyEnabled() bool { return wc.verify }

// Maximize reports whether unset sizing options should take their maximum.
func (wc *WorkerContext) Maximize() bool { return wc.maximize }

// Minimize reports whether unset sizing options should take their minimum.
func (wc *WorkerContext) Minimize() bool { return wc.minimize }

// Settings returns the typed option registry for this run.
func (wc *WorkerContext) Settings() *Settings { return wc.settings }

// Logger returns the worker's logger.
func (wc *WorkerContext) Logger() Logger { return wc.logger }

// Metrics returns the worker's metrics sink.
func (wc *WorkerContext) Metrics() Metrics { return wc.metrics }

// State returns the lifecycle state.
func (wc *WorkerContext) State() WorkerState {
	return WorkerState(wc.state.Load())
}

func (wc *WorkerContext) setState(s WorkerState) {
	wc.state.Store(int32(s))
}

// Stats returns a point-in-time snapshot for observability pollers.
func (wc *WorkerContext) Stats() WorkerStats {
	return WorkerStats{
		Name:           wc.name,
		Ops:            wc.counter.Load(),
		VerifyFailures: wc.verifyFailures.Load(),
		State:          wc.State(),
		Cancelled:      wc.deadline.Pending(),
	}
}
