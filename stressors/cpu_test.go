package stressors

import (
	"testing"

	"github.com/Swind/go-stress-runner/core"
)

func TestCPUSpinners_ExplicitSettingWins(t *testing.T) {
	settings := core.NewSettings()
	settings.SetInt("cpu-count", 3)
	wc := core.NewWorkerContext("cpu", core.WorkerConfig{
		Settings: settings,
		Logger:   core.NewNoOpLogger(),
	})
	if got := cpuSpinners(wc); got != 3 {
		t.Errorf("spinners = %d, want 3", got)
	}
}

func TestCPUSpinners_FallbackIsPositive(t *testing.T) {
	wc := core.NewWorkerContext("cpu", core.WorkerConfig{Logger: core.NewNoOpLogger()})
	if got := cpuSpinners(wc); got < 1 {
		t.Errorf("spinners = %d, want at least 1", got)
	}

	// A nonsensical setting falls through to discovery.
	settings := core.NewSettings()
	settings.SetInt("cpu-count", 0)
	wc = core.NewWorkerContext("cpu", core.WorkerConfig{
		Settings: settings,
		Logger:   core.NewNoOpLogger(),
	})
	if got := cpuSpinners(wc); got < 1 {
		t.Errorf("spinners with zero setting = %d, want at least 1", got)
	}
}

func TestCPUBurn_Deterministic(t *testing.T) {
	a := cpuBurn(1000)
	b := cpuBurn(1000)
	if a != b {
		t.Errorf("identical quanta diverged: %g != %g", a, b)
	}
	if cpuBurn(1000) == cpuBurn(2000) {
		t.Error("different quanta produced identical sums")
	}
}

func TestRunCPU_StopsAtOpsLimit(t *testing.T) {
	settings := core.NewSettings()
	settings.SetInt("cpu-count", 1)
	wc := core.NewWorkerContext("cpu", core.WorkerConfig{
		MaxOps:   2,
		Verify:   true,
		Settings: settings,
		Logger:   core.NewNoOpLogger(),
	})

	if err := runCPU(wc); err != nil {
		t.Fatalf("runCPU: %v", err)
	}
	if got := wc.Counter(); got != 2 {
		t.Errorf("counter = %d, want 2", got)
	}
	if got := wc.VerifyFailures(); got != 0 {
		t.Errorf("verify failures = %d, want 0", got)
	}
}
