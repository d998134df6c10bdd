package core

import "fmt"

// =============================================================================
// Verification layer
// =============================================================================

// VerificationResult is the transient outcome of one post-work-unit check:
// pass, or fail with a description of the violation.
type VerificationResult struct {
	OK     bool
	Detail string
}

// VerifyOK returns a passing result.
func VerifyOK() VerificationResult {
	return VerificationResult{OK: true}
}

// VerifyFailedf returns a failing result with a formatted description.
func VerifyFailedf(format string, args ...any) VerificationResult {
	return VerificationResult{Detail: fmt.Sprintf(format, args...)}
}

// ReportVerification reports a verification result. A failure is logged as a
// single line naming the stressor and the violation, and counted; it never
// stops the run. Whether accumulated failures affect the overall exit status
// is the surrounding orchestrator's call, made from counters it tracks
// separately.
func (wc *WorkerContext) ReportVerification(res VerificationResult) {
	if res.OK {
		return
	}
	wc.verifyFailures.Add(1)
	wc.metrics.RecordVerifyFailure(wc.name)
	wc.logger.Error("verification failure",
		F("stressor", wc.name),
		F("detail", res.Detail))
}

// VerifyFailures returns how many verification violations this worker has
// reported so far.
func (wc *WorkerContext) VerifyFailures() uint64 {
	return wc.verifyFailures.Load()
}
