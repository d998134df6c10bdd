package stress

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-stress-runner/core"
)

// stubSpawner returns pre-cooked outcomes without creating processes.
type stubSpawner struct {
	spawns  atomic.Int64
	outcome core.ExitOutcome
	err     error
}

func (s *stubSpawner) Spawn(stressor string, cfg core.WorkerConfig) (*core.WorkerHandle, error) {
	s.spawns.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return core.CompletedHandle(stressor, s.outcome), nil
}

func testRegistry(t *testing.T) *core.Registry {
	t.Helper()
	r := core.NewRegistry()
	infos := []*core.Info{
		{
			Name: "busy",
			Run: func(wc *core.WorkerContext) error {
				for wc.KeepStressing() {
					wc.IncCounter()
				}
				return nil
			},
			Verify: core.VerifyOptional,
		},
		{
			Name:   "always-verified",
			Run:    func(wc *core.WorkerContext) error { return nil },
			Verify: core.VerifyMandatory,
		},
		{
			Name:   "never-verified",
			Run:    func(wc *core.WorkerContext) error { return nil },
			Verify: core.VerifyDisabled,
		},
	}
	for _, info := range infos {
		if err := r.Register(info); err != nil {
			t.Fatalf("Register(%s): %v", info.Name, err)
		}
	}
	return r
}

func newTestHarness(t *testing.T, spawner core.Spawner) *Harness {
	t.Helper()
	return NewHarness(HarnessConfig{
		Registry: testRegistry(t),
		Spawner:  spawner,
		Logger:   core.NewNoOpLogger(),
	})
}

func TestRunStressor_ReturnsWorkerOutcome(t *testing.T) {
	spawner := &stubSpawner{outcome: core.ExitOutcome{Status: core.ExitSuccess, Ops: 11}}
	h := newTestHarness(t, spawner)

	outcome, err := h.RunStressor("busy", core.WorkerConfig{MaxOps: 11})
	if err != nil {
		t.Fatalf("RunStressor: %v", err)
	}
	if outcome.Status != core.ExitSuccess || outcome.Ops != 11 {
		t.Errorf("outcome = %+v", outcome)
	}
	if got := spawner.spawns.Load(); got != 1 {
		t.Errorf("spawns = %d, want 1", got)
	}
}

func TestRunStressor_UnknownName(t *testing.T) {
	h := newTestHarness(t, &stubSpawner{})
	if _, err := h.RunStressor("no-such-stressor", core.WorkerConfig{}); err == nil {
		t.Fatal("unknown stressor accepted")
	}
}

func TestRunStressor_SpawnError(t *testing.T) {
	boom := errors.New("spawn refused")
	h := newTestHarness(t, &stubSpawner{err: boom})

	outcome, err := h.RunStressor("busy", core.WorkerConfig{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if outcome.Status != core.ExitFailure {
		t.Errorf("status = %v, want %v", outcome.Status, core.ExitFailure)
	}
}

func TestResolveVerify(t *testing.T) {
	cases := []struct {
		mode      core.VerifyMode
		requested bool
		want      bool
	}{
		{core.VerifyMandatory, false, true},
		{core.VerifyMandatory, true, true},
		{core.VerifyDisabled, true, false},
		{core.VerifyDisabled, false, false},
		{core.VerifyOptional, true, true},
		{core.VerifyOptional, false, false},
	}
	for _, c := range cases {
		info := &core.Info{Verify: c.mode}
		if got := resolveVerify(info, c.requested); got != c.want {
			t.Errorf("resolveVerify(%v, %v) = %v, want %v", c.mode, c.requested, got, c.want)
		}
	}
}

func TestRunInstances_FansOut(t *testing.T) {
	spawner := &stubSpawner{outcome: core.ExitOutcome{Status: core.ExitSuccess, Ops: 2}}
	h := newTestHarness(t, spawner)

	outcomes := h.RunInstances("busy", 4, core.WorkerConfig{MaxOps: 2})
	if len(outcomes) != 4 {
		t.Fatalf("got %d outcomes, want 4", len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Status != core.ExitSuccess {
			t.Errorf("instance %d status = %v", i, outcome.Status)
		}
	}
	if got := spawner.spawns.Load(); got != 4 {
		t.Errorf("spawns = %d, want 4", got)
	}
}

func TestRunInstances_ClampsInstanceCount(t *testing.T) {
	spawner := &stubSpawner{outcome: core.ExitOutcome{Status: core.ExitSuccess}}
	h := newTestHarness(t, spawner)

	if got := len(h.RunInstances("busy", 0, core.WorkerConfig{})); got != 1 {
		t.Errorf("zero instances produced %d outcomes, want 1", got)
	}
}

func TestRequestStop_Idempotent(t *testing.T) {
	h := newTestHarness(t, &stubSpawner{})

	h.RequestStop()
	h.RequestStop() // must not panic on a closed channel

	select {
	case <-h.StopRequested():
	default:
		t.Error("stop channel not closed after RequestStop")
	}
}

func TestRunInProcess_DrivesWorkerLoop(t *testing.T) {
	h := newTestHarness(t, &stubSpawner{})

	outcome, err := h.RunInProcess("busy", core.WorkerConfig{
		MaxOps: 7,
		Logger: core.NewNoOpLogger(),
	})
	if err != nil {
		t.Fatalf("RunInProcess: %v", err)
	}
	if outcome.Status != core.ExitSuccess {
		t.Errorf("status = %v, want %v", outcome.Status, core.ExitSuccess)
	}
	if outcome.Ops != 7 {
		t.Errorf("ops = %d, want 7", outcome.Ops)
	}
}

func TestRunInProcess_StopChannelInherited(t *testing.T) {
	h := newTestHarness(t, &stubSpawner{})

	done := make(chan core.ExitOutcome, 1)
	go func() {
		outcome, _ := h.RunInProcess("busy", core.WorkerConfig{Logger: core.NewNoOpLogger()})
		done <- outcome
	}()

	time.Sleep(20 * time.Millisecond)
	h.RequestStop()

	select {
	case outcome := <-done:
		if outcome.Status != core.ExitSuccess {
			t.Errorf("status after early stop = %v, want %v", outcome.Status, core.ExitSuccess)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("unbounded worker did not observe the harness stop signal")
	}
}

func TestGlobalHarnessLifecycle(t *testing.T) {
	ShutdownGlobalHarness() // clean slate

	InitGlobalHarness(HarnessConfig{
		Registry: testRegistry(t),
		Spawner:  &stubSpawner{},
		Logger:   core.NewNoOpLogger(),
	})
	defer ShutdownGlobalHarness()

	h := GetGlobalHarness()
	if h == nil {
		t.Fatal("GetGlobalHarness returned nil")
	}

	// A second init keeps the first instance.
	InitGlobalHarness(HarnessConfig{})
	if GetGlobalHarness() != h {
		t.Error("re-initialization replaced the global harness")
	}

	ShutdownGlobalHarness()
	defer func() {
		if recover() == nil {
			t.Error("GetGlobalHarness after shutdown did not panic")
		}
	}()
	GetGlobalHarness()
}
