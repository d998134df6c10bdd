package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-stress-runner/core"
)

// WorkerSnapshotProvider provides current worker stats snapshots.
// *core.WorkerContext satisfies it.
type WorkerSnapshotProvider interface {
	Stats() core.WorkerStats
}

// SnapshotPoller periodically exports worker Stats() snapshots into
// Prometheus gauges, including the derived bogo-ops-per-second rate.
type SnapshotPoller struct {
	interval time.Duration

	workersMu sync.RWMutex
	workers   map[string]WorkerSnapshotProvider
	lastOps   map[string]uint64
	lastAt    map[string]time.Time

	workerOps        *prom.GaugeVec
	workerOpsRate    *prom.GaugeVec
	workerVerifyFail *prom.GaugeVec
	workerCancelled  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	workerOps := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "stressrunner",
		Name:      "worker_ops",
		Help:      "Bogo-op counter snapshot per worker.",
	}, []string{"worker", "state"})
	workerOpsRate := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "stressrunner",
		Name:      "worker_ops_per_second",
		Help:      "Bogo-ops per second derived from successive snapshots.",
	}, []string{"worker"})
	workerVerifyFail := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "stressrunner",
		Name:      "worker_verify_failures",
		Help:      "Verification violation counter snapshot per worker.",
	}, []string{"worker"})
	workerCancelled := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "stressrunner",
		Name:      "worker_cancelled",
		Help:      "Worker cancellation-pending state (1=pending, 0=running).",
	}, []string{"worker"})

	var err error
	if workerOps, err = registerCollector(reg, workerOps); err != nil {
		return nil, err
	}
	if workerOpsRate, err = registerCollector(reg, workerOpsRate); err != nil {
		return nil, err
	}
	if workerVerifyFail, err = registerCollector(reg, workerVerifyFail); err != nil {
		return nil, err
	}
	if workerCancelled, err = registerCollector(reg, workerCancelled); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		workers:          make(map[string]WorkerSnapshotProvider),
		lastOps:          make(map[string]uint64),
		lastAt:           make(map[string]time.Time),
		workerOps:        workerOps,
		workerOpsRate:    workerOpsRate,
		workerVerifyFail: workerVerifyFail,
		workerCancelled:  workerCancelled,
	}, nil
}

// AddWorker adds or replaces a worker snapshot provider by name.
func (p *SnapshotPoller) AddWorker(name string, provider WorkerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "worker")
	p.workersMu.Lock()
	p.workers[name] = provider
	p.workersMu.Unlock()
}

// RemoveWorker stops polling a worker, e.g. after its window ended.
func (p *SnapshotPoller) RemoveWorker(name string) {
	if p == nil {
		return
	}
	p.workersMu.Lock()
	delete(p.workers, name)
	delete(p.lastOps, name)
	delete(p.lastAt, name)
	p.workersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce(time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			p.collectOnce(tick)
		}
	}
}

func (p *SnapshotPoller) collectOnce(now time.Time) {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()

	for name, provider := range p.workers {
		stats := provider.Stats()

		p.workerOps.WithLabelValues(name, stats.State.String()).Set(float64(stats.Ops))
		p.workerVerifyFail.WithLabelValues(name).Set(float64(stats.VerifyFailures))
		if stats.Cancelled {
			p.workerCancelled.WithLabelValues(name).Set(1)
		} else {
			p.workerCancelled.WithLabelValues(name).Set(0)
		}

		if lastAt, ok := p.lastAt[name]; ok {
			elapsed := now.Sub(lastAt).Seconds()
			if elapsed > 0 && stats.Ops >= p.lastOps[name] {
				rate := float64(stats.Ops-p.lastOps[name]) / elapsed
				p.workerOpsRate.WithLabelValues(name).Set(rate)
			}
		}
		p.lastOps[name] = stats.Ops
		p.lastAt[name] = now
	}
}
