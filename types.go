package stress

import "github.com/Swind/go-stress-runner/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the stress package for most use cases.

// Info describes one pluggable stressor.
type Info = core.Info

// WorkerContext identifies one running stressor instance.
type WorkerContext = core.WorkerContext

// WorkerConfig configures one worker instance.
type WorkerConfig = core.WorkerConfig

// ExitOutcome reports one finished worker instance.
type ExitOutcome = core.ExitOutcome

// ExitStatus classifies how a worker instance ended.
type ExitStatus = core.ExitStatus

// Spawner creates isolated worker processes.
type Spawner = core.Spawner

// Registry maps stressor names to their Info.
type Registry = core.Registry

// Logger is the structured logging interface used throughout the harness.
type Logger = core.Logger

// Metrics is the counter/logging sink the harness reports into.
type Metrics = core.Metrics

// Exit status constants
const (
	ExitSuccess    = core.ExitSuccess
	ExitFailure    = core.ExitFailure
	ExitNoResource = core.ExitNoResource
	ExitKilled     = core.ExitKilled
)

// Verification mode constants
const (
	VerifyDisabled  = core.VerifyDisabled
	VerifyOptional  = core.VerifyOptional
	VerifyMandatory = core.VerifyMandatory
)

// F creates a structured logging field.
var F = core.F

// NewExecSpawner creates the default re-exec worker spawner.
var NewExecSpawner = core.NewExecSpawner
