package prometheus

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/Swind/go-stress-runner/core"
)

func newTestExporter(t *testing.T) (*MetricsExporter, *prom.Registry) {
	t.Helper()
	reg := prom.NewRegistry()
	m, err := NewMetricsExporter("", reg)
	if err != nil {
		t.Fatalf("NewMetricsExporter: %v", err)
	}
	return m, reg
}

func TestMetricsExporter_ImplementsMetrics(t *testing.T) {
	var _ core.Metrics = (*MetricsExporter)(nil)
}

func TestMetricsExporter_Counters(t *testing.T) {
	m, _ := newTestExporter(t)

	m.RecordOp("qsort")
	m.RecordOp("qsort")
	m.RecordOp("vm")
	m.RecordVerifyFailure("qsort")
	m.RecordSpawnRetry("cpu")
	m.RecordWorkerExit("qsort", core.ExitSuccess)
	m.RecordWorkerExit("qsort", core.ExitSuccess)
	m.RecordWorkerExit("vm", core.ExitNoResource)
	m.RecordPoolThreads("exit-group", 16)

	if got := testutil.ToFloat64(m.bogoOpsTotal.WithLabelValues("qsort")); got != 2 {
		t.Errorf("qsort ops = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bogoOpsTotal.WithLabelValues("vm")); got != 1 {
		t.Errorf("vm ops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.verifyFailTotal.WithLabelValues("qsort")); got != 1 {
		t.Errorf("qsort verify failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.spawnRetriesTotal.WithLabelValues("cpu")); got != 1 {
		t.Errorf("cpu spawn retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.workerExitsTotal.WithLabelValues("qsort", "success")); got != 2 {
		t.Errorf("qsort success exits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.workerExitsTotal.WithLabelValues("vm", "no-resource")); got != 1 {
		t.Errorf("vm no-resource exits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.poolThreadsStarted.WithLabelValues("exit-group")); got != 16 {
		t.Errorf("pool threads = %v, want 16", got)
	}
}

func TestMetricsExporter_EmptyLabelNormalized(t *testing.T) {
	m, _ := newTestExporter(t)

	m.RecordOp("")
	if got := testutil.ToFloat64(m.bogoOpsTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown ops = %v, want 1", got)
	}
}

func TestMetricsExporter_GatheredFamilies(t *testing.T) {
	m, reg := newTestExporter(t)

	m.RecordOp("qsort")
	m.RecordWorkerExit("qsort", core.ExitSuccess)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	ops, ok := byName["stressrunner_bogo_ops_total"]
	if !ok {
		t.Fatal("bogo_ops_total family not gathered")
	}
	if ops.GetType() != dto.MetricType_COUNTER {
		t.Errorf("bogo_ops_total type = %v, want counter", ops.GetType())
	}
	if got := len(ops.GetMetric()); got != 1 {
		t.Fatalf("bogo_ops_total series = %d, want 1", got)
	}
	labels := ops.GetMetric()[0].GetLabel()
	if len(labels) != 1 || labels[0].GetName() != "stressor" || labels[0].GetValue() != "qsort" {
		t.Errorf("bogo_ops_total labels = %v", labels)
	}
	if got := ops.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("bogo_ops_total value = %v, want 1", got)
	}

	if _, ok := byName["stressrunner_worker_exits_total"]; !ok {
		t.Error("worker_exits_total family not gathered")
	}
}

func TestMetricsExporter_ReregistrationReusesCollectors(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("stressrunner", reg)
	if err != nil {
		t.Fatalf("first NewMetricsExporter: %v", err)
	}
	second, err := NewMetricsExporter("stressrunner", reg)
	if err != nil {
		t.Fatalf("second NewMetricsExporter: %v", err)
	}

	first.RecordOp("qsort")
	second.RecordOp("qsort")
	if got := testutil.ToFloat64(first.bogoOpsTotal.WithLabelValues("qsort")); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
}

func TestMetricsExporter_NilReceiverIsSafe(t *testing.T) {
	var m *MetricsExporter
	m.RecordOp("qsort")
	m.RecordVerifyFailure("qsort")
	m.RecordWorkerExit("qsort", core.ExitFailure)
	m.RecordSpawnRetry("qsort")
	m.RecordPoolThreads("qsort", 1)
}
