package stressors

import (
	"errors"
	"testing"

	"github.com/Swind/go-stress-runner/core"
)

func TestVMBytes_Resolution(t *testing.T) {
	wc := core.NewWorkerContext("vm", core.WorkerConfig{Logger: core.NewNoOpLogger()})
	if n, err := vmBytes(wc); err != nil || n != defaultVMBytes {
		t.Errorf("default bytes = %d, %v", n, err)
	}

	settings := core.NewSettings()
	settings.SetUint64("vm-bytes", minVMBytes)
	wc = core.NewWorkerContext("vm", core.WorkerConfig{
		Settings: settings,
		Logger:   core.NewNoOpLogger(),
	})
	if n, err := vmBytes(wc); err != nil || n != minVMBytes {
		t.Errorf("explicit bytes = %d, %v", n, err)
	}

	wc = core.NewWorkerContext("vm", core.WorkerConfig{
		Minimize: true,
		Logger:   core.NewNoOpLogger(),
	})
	if n, err := vmBytes(wc); err != nil || n != minVMBytes {
		t.Errorf("minimized bytes = %d, %v", n, err)
	}

	wc = core.NewWorkerContext("vm", core.WorkerConfig{
		Maximize: true,
		Logger:   core.NewNoOpLogger(),
	})
	if n, err := vmBytes(wc); err != nil || n != maxVMBytes {
		t.Errorf("maximized bytes = %d, %v", n, err)
	}
}

func TestVMBytes_RangeCheck(t *testing.T) {
	settings := core.NewSettings()
	settings.SetUint64("vm-bytes", 1)
	wc := core.NewWorkerContext("vm", core.WorkerConfig{
		Settings: settings,
		Logger:   core.NewNoOpLogger(),
	})
	if _, err := vmBytes(wc); err == nil {
		t.Error("below-range allocation size accepted")
	}
}

func TestFillAndVerifyChunks(t *testing.T) {
	chunks := make([][]byte, 3)
	for i := range chunks {
		chunks[i] = make([]byte, 256)
		fillChunk(chunks[i], i)
	}

	if res := verifyChunks(chunks); !res.OK {
		t.Fatalf("freshly patterned chunks flagged: %s", res.Detail)
	}

	chunks[1][100] ^= 0xff
	res := verifyChunks(chunks)
	if res.OK {
		t.Fatal("corrupted chunk passed verification")
	}
}

func TestVerifyChunks_Empty(t *testing.T) {
	if res := verifyChunks(nil); !res.OK {
		t.Error("empty chunk set flagged")
	}
}

func TestRunVM_SingleOp(t *testing.T) {
	settings := core.NewSettings()
	settings.SetUint64("vm-bytes", minVMBytes)
	wc := core.NewWorkerContext("vm", core.WorkerConfig{
		MaxOps:   1,
		Verify:   true,
		Settings: settings,
		Logger:   core.NewNoOpLogger(),
	})

	err := runVM(wc)
	if err != nil {
		// The smallest cycle can still exceed a constrained machine.
		if errors.Is(err, core.ErrNoResource) {
			t.Skipf("insufficient memory: %v", err)
		}
		t.Fatalf("runVM: %v", err)
	}
	if got := wc.Counter(); got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}
	if got := wc.VerifyFailures(); got != 0 {
		t.Errorf("verify failures = %d, want 0", got)
	}
}
