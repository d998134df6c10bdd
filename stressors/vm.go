package stressors

import (
	"fmt"

	psmem "github.com/shirou/gopsutil/v3/mem"

	"github.com/Swind/go-stress-runner/core"
)

const (
	vmChunkSize    = 1 * 1024 * 1024
	minVMBytes     = 4 * 1024 * 1024
	maxVMBytes     = 1 * 1024 * 1024 * 1024
	defaultVMBytes = 256 * 1024 * 1024
)

func vmInfo() *core.Info {
	return &core.Info{
		Name:   "vm",
		Run:    runVM,
		Class:  core.ClassVM | core.ClassMemory,
		Verify: core.VerifyOptional,
		Help: []core.HelpEntry{
			{Flag: "vm", ArgHint: "N", Description: "start N workers exercising anonymous memory"},
			{Flag: "vm-ops", ArgHint: "N", Description: "stop after N vm bogo operations"},
			{Flag: "vm-bytes", ArgHint: "N", Description: "bytes to allocate per cycle (default 256MB)"},
		},
	}
}

func vmBytes(wc *core.WorkerContext) (uint64, error) {
	size := uint64(defaultVMBytes)
	if v, ok := wc.Settings().Uint64("vm-bytes"); ok {
		size = v
	} else if wc.Maximize() {
		size = maxVMBytes
	} else if wc.Minimize() {
		size = minVMBytes
	}
	if err := core.CheckRange("vm-bytes", size, minVMBytes, maxVMBytes); err != nil {
		return 0, err
	}
	return size, nil
}

// runVM allocates, patterns and drops chunked anonymous memory. One bogo-op
// is a full allocate-touch-verify-release cycle.
func runVM(wc *core.WorkerContext) error {
	total, err := vmBytes(wc)
	if err != nil {
		return err
	}

	// Asking for more than the machine has is resource exhaustion, not a
	// logic bug: report and skip the instance.
	if vmStat, err := psmem.VirtualMemory(); err == nil && vmStat.Available < total {
		return fmt.Errorf("%w: %d bytes requested, %d available",
			core.ErrNoResource, total, vmStat.Available)
	}

	chunkCount := int(total / vmChunkSize)
	for wc.KeepStressing() {
		chunks := make([][]byte, 0, chunkCount)
		for i := 0; i < chunkCount; i++ {
			chunk := make([]byte, vmChunkSize)
			fillChunk(chunk, i)
			chunks = append(chunks, chunk)

			// Checkpoint inside the long allocation phase so cancellation
			// is observed without waiting for the full cycle.
			if i%64 == 63 && !wc.KeepStressing() {
				break
			}
		}

		if wc.VerifyEnabled() {
			wc.ReportVerification(verifyChunks(chunks))
		}
		chunks = nil

		if !wc.KeepStressing() {
			break
		}
		wc.IncCounter()
	}
	return nil
}

// fillChunk writes a position-derived pattern, touching every page.
func fillChunk(chunk []byte, index int) {
	seed := byte(index*31 + 7)
	for i := range chunk {
		chunk[i] = seed ^ byte(i)
	}
}

// verifyChunks re-reads the pattern. The scan stops at the first corrupt
// byte; one failure is reported per pass.
func verifyChunks(chunks [][]byte) core.VerificationResult {
	for idx, chunk := range chunks {
		seed := byte(idx*31 + 7)
		for i, b := range chunk {
			if b != seed^byte(i) {
				return core.VerifyFailedf(
					"memory error detected, chunk %d offset %d: got %#x want %#x",
					idx, i, b, seed^byte(i))
			}
		}
	}
	return core.VerifyOK()
}
