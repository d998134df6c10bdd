package stress

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Swind/go-stress-runner/core"
)

// defaultKillGrace is how long a worker gets to react to an orchestrator
// stop before it is terminated forcefully.
const defaultKillGrace = 2 * time.Second

// HarnessConfig configures a Harness. Zero values select sane defaults.
type HarnessConfig struct {
	Registry *core.Registry
	Spawner  core.Spawner
	Logger   core.Logger
	Metrics  core.Metrics

	// KillGrace is the delay between requesting early stop and forcefully
	// terminating a worker that ignored it.
	KillGrace time.Duration
}

// Harness runs registered stressors in isolated worker processes and
// collects their outcomes. It owns the orchestrator-side early-stop signal
// that feeds every worker's continuation predicate.
type Harness struct {
	registry  *core.Registry
	spawner   core.Spawner
	logger    core.Logger
	metrics   core.Metrics
	killGrace time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewHarness creates a Harness.
func NewHarness(cfg HarnessConfig) *Harness {
	h := &Harness{
		registry:  cfg.Registry,
		spawner:   cfg.Spawner,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		killGrace: cfg.KillGrace,
		stop:      make(chan struct{}),
	}
	if h.registry == nil {
		h.registry = core.DefaultRegistry()
	}
	if h.spawner == nil {
		h.spawner = core.NewExecSpawner()
	}
	if h.logger == nil {
		h.logger = core.NewDefaultLogger()
	}
	if h.metrics == nil {
		h.metrics = &core.NilMetrics{}
	}
	if h.killGrace <= 0 {
		h.killGrace = defaultKillGrace
	}
	return h
}

// Registry returns the harness's stressor registry.
func (h *Harness) Registry() *core.Registry { return h.registry }

// RequestStop asks every running and future worker to stop early.
// Safe to call repeatedly from any goroutine.
func (h *Harness) RequestStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// StopRequested returns a channel closed once early stop was requested.
func (h *Harness) StopRequested() <-chan struct{} { return h.stop }

// NotifySignals converts process signals (SIGINT/SIGTERM by default) into
// an early-stop request. The returned function cancels the relay.
func (h *Harness) NotifySignals(sigs ...os.Signal) func() {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		if _, ok := <-ch; ok {
			h.RequestStop()
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

// resolveVerify applies the stressor's verification default to the user's
// request: Mandatory always verifies, Disabled never does.
func resolveVerify(info *core.Info, requested bool) bool {
	switch info.Verify {
	case core.VerifyMandatory:
		return true
	case core.VerifyDisabled:
		return false
	default:
		return requested
	}
}

// RunStressor runs one stressor instance in an isolated worker process and
// blocks until it exits, returning the outcome plus its final bogo-op count.
// If early stop is requested while the worker runs, the worker gets a grace
// period to observe it and is then terminated forcefully and reaped.
func (h *Harness) RunStressor(name string, cfg core.WorkerConfig) (core.ExitOutcome, error) {
	info, ok := h.registry.Lookup(name)
	if !ok {
		return core.ExitOutcome{Status: core.ExitFailure}, fmt.Errorf("unknown stressor %q", name)
	}
	cfg.Verify = resolveVerify(info, cfg.Verify)

	handle, err := h.spawner.Spawn(name, cfg)
	if err != nil {
		h.logger.Error("worker spawn failed",
			F("stressor", name),
			F("error", err))
		return core.ExitOutcome{Status: core.ExitFailure}, err
	}

	done := make(chan core.ExitOutcome, 1)
	go func() { done <- core.Wait(handle) }()

	var outcome core.ExitOutcome
	select {
	case outcome = <-done:
	case <-h.stop:
		// The worker has no in-process view of our stop channel; give it
		// the grace period via TERM, then force-kill and reap.
		outcome = core.KillWait(handle, h.killGrace)
	}

	h.metrics.RecordWorkerExit(name, outcome.Status)
	h.logger.Info("worker finished",
		F("stressor", name),
		F("status", outcome.Status),
		F("bogo-ops", outcome.Ops))
	return outcome, nil
}

// RunInstances fans out n concurrent instances of one stressor, one worker
// process each, and waits for all of them. Plain fan-out: the harness does
// not schedule or prioritize among instances.
func (h *Harness) RunInstances(name string, n int, cfg core.WorkerConfig) []core.ExitOutcome {
	if n <= 0 {
		n = 1
	}
	outcomes := make([]core.ExitOutcome, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			outcome, err := h.RunStressor(name, cfg)
			if err != nil {
				outcome.Status = core.ExitFailure
			}
			outcomes[slot] = outcome
		}(i)
	}
	wg.Wait()
	return outcomes
}

// RunInProcess runs one stressor instance inside the current process. This
// is the worker command's entry point; tests use it to exercise the full
// execution window without spawning.
func (h *Harness) RunInProcess(name string, cfg core.WorkerConfig) (core.ExitOutcome, error) {
	info, ok := h.registry.Lookup(name)
	if !ok {
		return core.ExitOutcome{Status: core.ExitFailure}, fmt.Errorf("unknown stressor %q", name)
	}
	cfg.Verify = resolveVerify(info, cfg.Verify)
	if cfg.Stop == nil {
		cfg.Stop = h.stop
	}
	if cfg.Logger == nil {
		cfg.Logger = h.logger
	}
	if cfg.Metrics == nil {
		cfg.Metrics = h.metrics
	}
	return core.RunWorker(info, cfg), nil
}

// =============================================================================
// Global Harness Helper (Singleton)
// =============================================================================

var (
	globalHarness *Harness
	globalMu      sync.Mutex
)

// InitGlobalHarness initializes the global harness.
func InitGlobalHarness(cfg HarnessConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalHarness != nil {
		return // Already initialized
	}
	globalHarness = NewHarness(cfg)
}

// GetGlobalHarness returns the global harness instance.
// It panics if InitGlobalHarness has not been called.
func GetGlobalHarness() *Harness {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalHarness == nil {
		panic("global harness not initialized. Call InitGlobalHarness() first.")
	}
	return globalHarness
}

// ShutdownGlobalHarness requests stop and drops the global harness.
func ShutdownGlobalHarness() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalHarness != nil {
		globalHarness.RequestStop()
		globalHarness = nil
	}
}
