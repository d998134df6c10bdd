// Package stress provides a workload-generation harness that exercises
// operating-system subsystems (CPU, scheduler, memory, IPC) to breaking
// point, measuring throughput in bogo-operations and optionally verifying
// correctness under load.
//
// # Quick Start
//
// Register the shipped stressors and run one instance under a deadline:
//
//	harness := stress.NewHarness(stress.HarnessConfig{})
//	stressors.RegisterAll(harness.Registry(), core.NewExecSpawner())
//
//	outcome, err := harness.RunStressor("qsort", core.WorkerConfig{
//		Timeout: 10 * time.Second,
//		Verify:  true,
//	})
//
// # Key Concepts
//
// Stressor: a pluggable workload definition (name, entry point, class tags,
// help text, verification default) registered through core.Info.
//
// Worker: one OS process running a single stressor instance until its
// operation-count limit, its deadline, or an orchestrator stop ends it.
// Process-level isolation is deliberate: a workload that corrupts its own
// address space or terminates its own process cannot harm the harness or
// sibling instances.
//
// Bogo-operation: one completed unit of workload, counted for throughput
// reporting. "Bogus" denotes a relative, not absolute, performance unit.
//
// # Cancellation Model
//
// Cancellation is cooperative. The deadline controller records exactly one
// cancellation event per worker window; the worker loop observes it at loop
// boundaries and at safe points inside long work units. A work unit that
// never polls may overrun its deadline, but no work unit is ever interrupted
// mid-mutation.
//
// For more details, see the core package documentation.
package stress
