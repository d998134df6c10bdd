package stressors

import (
	"fmt"

	"github.com/Swind/go-stress-runner/core"
)

// exitGroupThreads matches the original 16-thread race.
const exitGroupThreads = 16

// exitGroupPoolName is the hidden child entry point that runs the pool.
const exitGroupPoolName = "exit-group-pool"

func exitGroupInfo(spawner core.Spawner) *core.Info {
	return &core.Info{
		Name:   "exit-group",
		Run:    runExitGroup(spawner),
		Class:  core.ClassScheduler | core.ClassOS,
		Verify: core.VerifyDisabled,
		Help: []core.HelpEntry{
			{Flag: "exit-group", ArgHint: "N", Description: "start N workers that exercise whole-process termination"},
			{Flag: "exit-group-ops", ArgHint: "N", Description: "stop exit-group workers after N bogo exit-group loops"},
		},
	}
}

func exitGroupPoolInfo() *core.Info {
	return &core.Info{
		Name:   exitGroupPoolName,
		Run:    runExitGroupPool,
		Class:  core.ClassScheduler | core.ClassOS,
		Verify: core.VerifyDisabled,
		Hidden: true,
	}
}

// runExitGroup is the parent side: one bogo-op is a full child lifecycle.
// The pool synchronization state is created before each spawn and released
// only after the child has been reaped; the child rebuilds the same state in
// its own address space, where the pool threads actually share it.
func runExitGroup(spawner core.Spawner) core.RunFunc {
	return func(wc *core.WorkerContext) error {
		if spawner == nil {
			return fmt.Errorf("exit-group requires a worker spawner")
		}

		for wc.KeepStressing() {
			ps := core.NewPoolSync(exitGroupThreads)

			handle, err := spawner.Spawn(exitGroupPoolName, core.WorkerConfig{})
			if err != nil {
				ps.Release()
				return fmt.Errorf("exit-group child: %w", err)
			}
			// The child only ever exits through the forced-termination
			// primitive; its status carries no more information than
			// "it ended", so it is not inspected.
			core.Wait(handle)
			ps.Release()

			wc.IncCounter()
		}
		return nil
	}
}

// runExitGroupPool is the child side: a bounded pool of OS threads that all
// race to observe pool readiness and then terminate the whole process.
// RunPool never returns through a normal path.
func runExitGroupPool(wc *core.WorkerContext) error {
	ps := core.NewPoolSync(exitGroupThreads)
	core.RunPool(wc, ps, core.ThreadPoolConfig{Size: exitGroupThreads})
	return nil
}
