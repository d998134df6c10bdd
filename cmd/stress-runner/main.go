// Command stress-runner runs registered stressors in isolated worker
// processes, counting bogo-operations and optionally verifying correctness
// under load.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	stress "github.com/Swind/go-stress-runner"
	"github.com/Swind/go-stress-runner/core"
	obs "github.com/Swind/go-stress-runner/observability/prometheus"
	"github.com/Swind/go-stress-runner/stressors"
)

func main() {
	app := &cli.App{
		Name:  "stress-runner",
		Usage: "exercise OS subsystems to breaking point, measuring bogo-ops throughput",
		Commands: []*cli.Command{
			runCommand(),
			listCommand(),
			workerCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(core.ExitCodeFailure)
	}
}

// newRegistry builds a registry with every shipped stressor.
func newRegistry(spawner core.Spawner) (*core.Registry, error) {
	reg := core.NewRegistry()
	if err := stressors.RegisterAll(reg, spawner); err != nil {
		return nil, err
	}
	return reg, nil
}

// settingsFromFlags collects the per-stressor sizing options.
func settingsFromFlags(c *cli.Context) *core.Settings {
	settings := core.NewSettings()
	if c.IsSet("qsort-size") {
		settings.SetUint64("qsort-size", c.Uint64("qsort-size"))
	}
	if c.IsSet("vm-bytes") {
		settings.SetUint64("vm-bytes", c.Uint64("vm-bytes"))
	}
	if c.IsSet("cpu-count") {
		settings.SetInt("cpu-count", c.Int("cpu-count"))
	}
	return settings
}

func stressorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{Name: "qsort-size", Usage: "number of 32 bit integers to sort", EnvVars: []string{"STRESS_QSORT_SIZE"}},
		&cli.Uint64Flag{Name: "vm-bytes", Usage: "bytes to allocate per vm cycle", EnvVars: []string{"STRESS_VM_BYTES"}},
		&cli.IntFlag{Name: "cpu-count", Usage: "spinner threads per cpu worker", EnvVars: []string{"STRESS_CPU_COUNT"}},
	}
}

func runCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Value:   1,
			Usage:   "concurrent worker instances",
		},
		&cli.Uint64Flag{
			Name:  "ops",
			Usage: "stop each worker after N bogo operations (0 = unbounded)",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "stop each worker after this wall-clock duration",
			EnvVars: []string{"STRESS_TIMEOUT"},
		},
		&cli.BoolFlag{
			Name:  "verify",
			Usage: "verify workload results after each work unit",
		},
		&cli.BoolFlag{
			Name:  "maximize",
			Usage: "use maximum values for unset stressor options",
		},
		&cli.BoolFlag{
			Name:  "minimize",
			Usage: "use minimum values for unset stressor options",
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "expose Prometheus metrics on this address (e.g. :9464)",
			EnvVars: []string{"STRESS_METRICS_ADDR"},
		},
	}
	flags = append(flags, stressorFlags()...)

	return &cli.Command{
		Name:      "run",
		Usage:     "run one stressor in isolated worker processes",
		ArgsUsage: "STRESSOR",
		Flags:     flags,
		Action:    runAction,
	}
}

func runAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("run requires a stressor name, see `stress-runner list`", core.ExitCodeFailure)
	}

	logger := core.NewDefaultLogger()
	var metrics core.Metrics = &core.NilMetrics{}
	if addr := c.String("metrics-addr"); addr != "" {
		exporter, err := obs.NewMetricsExporter("stressrunner", nil)
		if err != nil {
			return cli.Exit(fmt.Sprintf("metrics setup failed: %v", err), core.ExitCodeFailure)
		}
		metrics = exporter

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", core.F("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	spawner := core.NewExecSpawner()
	spawner.Logger = logger
	spawner.Metrics = metrics

	registry, err := newRegistry(spawner)
	if err != nil {
		return cli.Exit(err.Error(), core.ExitCodeFailure)
	}

	harness := stress.NewHarness(stress.HarnessConfig{
		Registry: registry,
		Spawner:  spawner,
		Logger:   logger,
		Metrics:  metrics,
	})
	cancelSignals := harness.NotifySignals()
	defer cancelSignals()

	cfg := core.WorkerConfig{
		MaxOps:   c.Uint64("ops"),
		Timeout:  c.Duration("timeout"),
		Verify:   c.Bool("verify"),
		Maximize: c.Bool("maximize"),
		Minimize: c.Bool("minimize"),
		Settings: settingsFromFlags(c),
	}

	outcomes := harness.RunInstances(name, c.Int("workers"), cfg)

	var totalOps uint64
	exitCode := core.ExitCodeSuccess
	for _, outcome := range outcomes {
		totalOps += outcome.Ops
		switch outcome.Status {
		case core.ExitFailure, core.ExitKilled:
			exitCode = core.ExitCodeFailure
		case core.ExitNoResource:
			if exitCode == core.ExitCodeSuccess {
				exitCode = core.ExitCodeNoResource
			}
		}
	}
	logger.Info("run complete",
		core.F("stressor", name),
		core.F("workers", len(outcomes)),
		core.F("bogo-ops", totalOps))

	if exitCode != core.ExitCodeSuccess {
		return cli.Exit("", exitCode)
	}
	return nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list available stressors",
		Action: func(c *cli.Context) error {
			registry, err := newRegistry(core.NewExecSpawner())
			if err != nil {
				return cli.Exit(err.Error(), core.ExitCodeFailure)
			}
			for _, name := range registry.Names() {
				info, _ := registry.Lookup(name)
				fmt.Printf("%-12s class=%s\n", name, info.Class)
				for _, entry := range info.Help {
					fmt.Printf("    --%-16s %-4s %s\n", entry.Flag, entry.ArgHint, entry.Description)
				}
			}
			return nil
		},
	}
}

// workerCommand is the hidden re-exec entry point: it runs one stressor
// instance inside this process, reports the final counter on stdout, and
// exits with the outcome's code.
func workerCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "stressor", Required: true},
		&cli.Uint64Flag{Name: "ops"},
		&cli.DurationFlag{Name: "timeout"},
		&cli.BoolFlag{Name: "verify"},
		&cli.BoolFlag{Name: "maximize"},
		&cli.BoolFlag{Name: "minimize"},
		&cli.StringSliceFlag{Name: "set", Usage: "type-tagged stressor option"},
	}

	return &cli.Command{
		Name:   "worker",
		Hidden: true,
		Flags:  flags,
		Action: workerAction,
	}
}

func workerAction(c *cli.Context) error {
	settings := core.NewSettings()
	for _, item := range c.StringSlice("set") {
		if err := settings.DecodeSetting(item); err != nil {
			return cli.Exit(err.Error(), core.ExitCodeFailure)
		}
	}

	registry, err := newRegistry(core.NewExecSpawner())
	if err != nil {
		return cli.Exit(err.Error(), core.ExitCodeFailure)
	}

	harness := stress.NewHarness(stress.HarnessConfig{
		Registry: registry,
		Logger:   core.NewDefaultLogger(),
	})
	cancelSignals := harness.NotifySignals()
	defer cancelSignals()

	outcome, err := harness.RunInProcess(c.String("stressor"), core.WorkerConfig{
		MaxOps:   c.Uint64("ops"),
		Timeout:  c.Duration("timeout"),
		Verify:   c.Bool("verify"),
		Maximize: c.Bool("maximize"),
		Minimize: c.Bool("minimize"),
		Settings: settings,
	})
	if err != nil {
		return cli.Exit(err.Error(), core.ExitCodeFailure)
	}

	core.WriteOpsMarker(outcome.Ops)
	os.Exit(outcome.ExitCode())
	return nil
}
