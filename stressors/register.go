package stressors

import "github.com/Swind/go-stress-runner/core"

// RegisterAll adds every shipped stressor to the registry. The spawner is
// used by stressors that spawn their own child processes per bogo-op.
func RegisterAll(r *core.Registry, spawner core.Spawner) error {
	infos := []*core.Info{
		qsortInfo(),
		exitGroupInfo(spawner),
		exitGroupPoolInfo(),
		cpuInfo(),
		vmInfo(),
	}
	for _, info := range infos {
		if err := r.Register(info); err != nil {
			return err
		}
	}
	return nil
}
