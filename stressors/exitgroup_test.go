package stressors

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/Swind/go-stress-runner/core"
)

// fakeSpawner records spawn requests and hands back already-completed
// handles, so the parent loop can be driven without real processes.
type fakeSpawner struct {
	spawns  atomic.Int64
	failErr error
	outcome core.ExitOutcome
}

func (f *fakeSpawner) Spawn(stressor string, cfg core.WorkerConfig) (*core.WorkerHandle, error) {
	f.spawns.Add(1)
	if f.failErr != nil {
		return nil, f.failErr
	}
	return core.CompletedHandle(stressor, f.outcome), nil
}

func TestRunExitGroup_OneChildPerOp(t *testing.T) {
	spawner := &fakeSpawner{outcome: core.ExitOutcome{Status: core.ExitKilled}}
	wc := core.NewWorkerContext("exit-group", core.WorkerConfig{
		MaxOps: 3,
		Logger: core.NewNoOpLogger(),
	})

	if err := runExitGroup(spawner)(wc); err != nil {
		t.Fatalf("runExitGroup: %v", err)
	}
	if got := spawner.spawns.Load(); got != 3 {
		t.Errorf("spawned %d children, want 3", got)
	}
	if got := wc.Counter(); got != 3 {
		t.Errorf("counter = %d, want 3", got)
	}
}

func TestRunExitGroup_SpawnErrorPropagates(t *testing.T) {
	boom := errors.New("fork storm")
	spawner := &fakeSpawner{failErr: boom}
	wc := core.NewWorkerContext("exit-group", core.WorkerConfig{
		MaxOps: 5,
		Logger: core.NewNoOpLogger(),
	})

	err := runExitGroup(spawner)(wc)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if got := wc.Counter(); got != 0 {
		t.Errorf("counter = %d after failed spawn, want 0", got)
	}
}

func TestRunExitGroup_NilSpawner(t *testing.T) {
	wc := core.NewWorkerContext("exit-group", core.WorkerConfig{
		MaxOps: 1,
		Logger: core.NewNoOpLogger(),
	})
	if err := runExitGroup(nil)(wc); err == nil {
		t.Fatal("nil spawner accepted")
	}
}

func TestRegisterAll(t *testing.T) {
	r := core.NewRegistry()
	if err := RegisterAll(r, &fakeSpawner{}); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}

	for _, name := range []string{"qsort", "exit-group", "cpu", "vm"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("stressor %s not registered", name)
		}
	}
	// The pool entry point is registered but hidden from listings.
	if _, ok := r.Lookup(exitGroupPoolName); !ok {
		t.Error("pool entry point not registered")
	}
	for _, name := range r.Names() {
		if name == exitGroupPoolName {
			t.Error("pool entry point leaked into visible names")
		}
	}
}
