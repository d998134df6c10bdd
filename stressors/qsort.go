// Package stressors contains the pluggable workloads shipped with the
// harness. Each stressor is registered through the core registration
// contract and drives its bogo-op loop on the WorkerContext it is given;
// the harness stays agnostic to what the work actually is.
package stressors

import (
	"math/bits"
	"math/rand/v2"
	"sort"

	"github.com/Swind/go-stress-runner/core"
)

const (
	minQsortSize     = 1 * 1024
	maxQsortSize     = 4 * 1024 * 1024
	defaultQsortSize = 256 * 1024
)

func qsortInfo() *core.Info {
	return &core.Info{
		Name:   "qsort",
		Run:    runQsort,
		Class:  core.ClassCPUCache | core.ClassCPU | core.ClassMemory,
		Verify: core.VerifyOptional,
		Help: []core.HelpEntry{
			{Flag: "qsort", ArgHint: "N", Description: "start N workers sorting 32 bit random integers"},
			{Flag: "qsort-ops", ArgHint: "N", Description: "stop after N qsort bogo operations"},
			{Flag: "qsort-size", ArgHint: "N", Description: "number of 32 bit integers to sort"},
		},
	}
}

// qsortSize resolves the sizing option: explicit setting wins, otherwise the
// maximize/minimize flags pick an extreme, otherwise the default.
func qsortSize(wc *core.WorkerContext) (int, error) {
	size := uint64(defaultQsortSize)
	if v, ok := wc.Settings().Uint64("qsort-size"); ok {
		size = v
	} else if wc.Maximize() {
		size = maxQsortSize
	} else if wc.Minimize() {
		size = minQsortSize
	}
	if err := core.CheckRange("qsort-size", size, minQsortSize, maxQsortSize); err != nil {
		return 0, err
	}
	return int(size), nil
}

// runQsort repeatedly sorts a buffer of random integers. One bogo-op is a
// full cycle: forward sort, reverse sort, a byte-pattern re-order, and a
// final reverse sort, with ordering verification after the verified passes.
func runQsort(wc *core.WorkerContext) error {
	n, err := qsortSize(wc)
	if err != nil {
		return err
	}

	// Generating the random data is expensive, do it once.
	data := make([]int32, n)
	for i := range data {
		data[i] = int32(rand.Uint32())
	}

	for wc.KeepStressing() {
		sort.Slice(data, func(i, j int) bool { return data[i] < data[j] })
		if wc.VerifyEnabled() {
			wc.ReportVerification(verifyAscending(data))
		}
		if !wc.KeepStressing() {
			break
		}

		sort.Slice(data, func(i, j int) bool { return data[i] > data[j] })
		if wc.VerifyEnabled() {
			wc.ReportVerification(verifyDescending(data))
		}
		if !wc.KeepStressing() {
			break
		}

		// Re-order by byte-reversed key to scramble the buffer, then
		// reverse sort it back.
		sort.Slice(data, func(i, j int) bool {
			return bits.ReverseBytes32(uint32(data[i])) < bits.ReverseBytes32(uint32(data[j]))
		})
		sort.Slice(data, func(i, j int) bool { return data[i] > data[j] })
		if wc.VerifyEnabled() {
			wc.ReportVerification(verifyDescending(data))
		}
		if !wc.KeepStressing() {
			break
		}

		wc.IncCounter()
	}
	return nil
}

// verifyAscending scans for an ordering violation. The scan stops at the
// first mismatch; one failure is reported per pass.
func verifyAscending(data []int32) core.VerificationResult {
	for i := 0; i+1 < len(data); i++ {
		if data[i] > data[i+1] {
			return core.VerifyFailedf("sort error detected, incorrect ordering at element %d", i)
		}
	}
	return core.VerifyOK()
}

func verifyDescending(data []int32) core.VerificationResult {
	for i := 0; i+1 < len(data); i++ {
		if data[i] < data[i+1] {
			return core.VerifyFailedf("reverse sort error detected, incorrect ordering at element %d", i)
		}
	}
	return core.VerifyOK()
}
