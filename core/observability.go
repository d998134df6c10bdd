package core

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the counter/logging sink the harness reports into.
// Implementations can forward to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods must be fast and non-blocking; they are called from hot loops.
type Metrics interface {
	// RecordOp records one completed bogo-operation for a stressor.
	RecordOp(stressor string)

	// RecordVerifyFailure records one verification violation.
	RecordVerifyFailure(stressor string)

	// RecordWorkerExit records a finished worker instance and how it ended.
	RecordWorkerExit(stressor string, status ExitStatus)

	// RecordSpawnRetry records one transient spawn failure that was retried.
	RecordSpawnRetry(stressor string)

	// RecordPoolThreads records how many pool threads actually started.
	RecordPoolThreads(stressor string, started int)
}

// NilMetrics is the default no-op sink.
type NilMetrics struct{}

func (m *NilMetrics) RecordOp(stressor string)                      {}
func (m *NilMetrics) RecordVerifyFailure(stressor string)           {}
func (m *NilMetrics) RecordWorkerExit(stressor string, status ExitStatus) {}
func (m *NilMetrics) RecordSpawnRetry(stressor string)              {}
func (m *NilMetrics) RecordPoolThreads(stressor string, started int) {}

// =============================================================================
// PanicHandler: containment for panicking work units
// =============================================================================

// PanicHandler is called when a stressor's work unit panics. The panic is
// contained inside the worker process; siblings and the harness never see it.
type PanicHandler interface {
	HandlePanic(stressor string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs the panic through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

func (h *DefaultPanicHandler) HandlePanic(stressor string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("stressor panic",
		F("stressor", stressor),
		F("panic", panicInfo),
		F("stack", string(stackTrace)))
}

// =============================================================================
// WorkerStats: runtime observability snapshot
// =============================================================================

// WorkerStats is a point-in-time snapshot of one worker's progress, consumed
// by snapshot pollers for bogo-ops-per-second reporting.
type WorkerStats struct {
	Name           string
	Ops            uint64
	VerifyFailures uint64
	State          WorkerState
	Cancelled      bool
}
