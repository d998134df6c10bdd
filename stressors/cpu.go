package stressors

import (
	"math"
	"runtime"

	pscpu "github.com/shirou/gopsutil/v3/cpu"

	"github.com/Swind/go-stress-runner/core"
)

// cpuQuantum is the amount of spin work that counts as one bogo-op.
const cpuQuantum = 16384

func cpuInfo() *core.Info {
	return &core.Info{
		Name:   "cpu",
		Run:    runCPU,
		Class:  core.ClassCPU,
		Verify: core.VerifyOptional,
		Help: []core.HelpEntry{
			{Flag: "cpu", ArgHint: "N", Description: "start N workers exercising the CPU"},
			{Flag: "cpu-ops", ArgHint: "N", Description: "stop after N cpu bogo operations"},
			{Flag: "cpu-count", ArgHint: "N", Description: "spinner threads per worker, default is the physical core count"},
		},
	}
}

// cpuSpinners resolves how many background spinner threads to run. Physical
// core discovery can fail inside containers; fall back to the runtime view.
func cpuSpinners(wc *core.WorkerContext) int {
	if n, ok := wc.Settings().Int("cpu-count"); ok && n > 0 {
		return n
	}
	if cores, err := pscpu.Counts(false); err == nil && cores > 0 {
		return cores
	}
	return runtime.NumCPU()
}

// runCPU burns cycles. The main loop computes a fixed quantum of floating
// point work per bogo-op; the remaining spinners keep the other cores busy
// and stop with the same cooperative predicate.
func runCPU(wc *core.WorkerContext) error {
	for i := 1; i < cpuSpinners(wc); i++ {
		go func() {
			for wc.KeepStressing() {
				cpuBurn(cpuQuantum)
			}
		}()
	}

	for wc.KeepStressing() {
		sum := cpuBurn(cpuQuantum)
		if wc.VerifyEnabled() {
			again := cpuBurn(cpuQuantum)
			if sum != again {
				wc.ReportVerification(core.VerifyFailedf(
					"cpu computation mismatch: %g != %g", sum, again))
			} else {
				wc.ReportVerification(core.VerifyOK())
			}
		}
		wc.IncCounter()
	}
	return nil
}

func cpuBurn(iters int) float64 {
	var sum float64
	for i := 1; i <= iters; i++ {
		sum += math.Sqrt(float64(i))
	}
	return sum
}
