package prometheus

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-stress-runner/core"
)

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	bogoOpsTotal       *prom.CounterVec
	verifyFailTotal    *prom.CounterVec
	workerExitsTotal   *prom.CounterVec
	spawnRetriesTotal  *prom.CounterVec
	poolThreadsStarted *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for
// core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "stressrunner"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	opsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "bogo_ops_total",
		Help:      "Total completed bogo-operations per stressor.",
	}, []string{"stressor"})
	verifyVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "verify_failures_total",
		Help:      "Total verification violations per stressor.",
	}, []string{"stressor"})
	exitsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "worker_exits_total",
		Help:      "Total finished worker instances per stressor and exit status.",
	}, []string{"stressor", "status"})
	retriesVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "spawn_retries_total",
		Help:      "Total transient worker spawn failures that were retried.",
	}, []string{"stressor"})
	poolVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_threads_started",
		Help:      "Pool threads actually started in the last nested pool run.",
	}, []string{"stressor"})

	var err error
	if opsVec, err = registerCollector(reg, opsVec); err != nil {
		return nil, err
	}
	if verifyVec, err = registerCollector(reg, verifyVec); err != nil {
		return nil, err
	}
	if exitsVec, err = registerCollector(reg, exitsVec); err != nil {
		return nil, err
	}
	if retriesVec, err = registerCollector(reg, retriesVec); err != nil {
		return nil, err
	}
	if poolVec, err = registerCollector(reg, poolVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		bogoOpsTotal:       opsVec,
		verifyFailTotal:    verifyVec,
		workerExitsTotal:   exitsVec,
		spawnRetriesTotal:  retriesVec,
		poolThreadsStarted: poolVec,
	}, nil
}

// RecordOp counts one completed bogo-operation.
func (m *MetricsExporter) RecordOp(stressor string) {
	if m == nil {
		return
	}
	m.bogoOpsTotal.WithLabelValues(normalizeLabel(stressor, "unknown")).Inc()
}

// RecordVerifyFailure counts one verification violation.
func (m *MetricsExporter) RecordVerifyFailure(stressor string) {
	if m == nil {
		return
	}
	m.verifyFailTotal.WithLabelValues(normalizeLabel(stressor, "unknown")).Inc()
}

// RecordWorkerExit counts one finished worker instance.
func (m *MetricsExporter) RecordWorkerExit(stressor string, status core.ExitStatus) {
	if m == nil {
		return
	}
	m.workerExitsTotal.WithLabelValues(normalizeLabel(stressor, "unknown"), status.String()).Inc()
}

// RecordSpawnRetry counts one retried transient spawn failure.
func (m *MetricsExporter) RecordSpawnRetry(stressor string) {
	if m == nil {
		return
	}
	m.spawnRetriesTotal.WithLabelValues(normalizeLabel(stressor, "unknown")).Inc()
}

// RecordPoolThreads publishes the started thread count of a nested pool.
func (m *MetricsExporter) RecordPoolThreads(stressor string, started int) {
	if m == nil {
		return
	}
	m.poolThreadsStarted.WithLabelValues(normalizeLabel(stressor, "unknown")).Set(float64(started))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
