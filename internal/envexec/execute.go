package envexec

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/wrapctl/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the phase of one Execute call.
type State string

const (
	StateIdle      State = "idle"
	StateBuilding  State = "building"
	StateSpawning  State = "spawning"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Run results recorded in metrics.
const (
	ResultSuccess     = "success"
	ResultNonZeroExit = "nonzero_exit"
	ResultConfigError = "config_error"
	ResultSpawnError  = "spawn_error"
	ResultWaitError   = "wait_error"
)

// Outcome is the result of one Execute call. A non-zero ExitCode is reported
// here and never as an error; callers decide its severity.
type Outcome struct {
	// RunID correlates log lines of one Execute call.
	RunID    string
	ExitCode int
	// TimedOut is reserved. No timeout is enforced.
	TimedOut bool
	State    State
	Command  []string
	Duration time.Duration
}

func (o Outcome) Success() bool {
	return o.State == StateCompleted && o.ExitCode == 0
}

// Executor is the entry point combining Build, a Launcher and a Pump.
// The zero value runs locally on the current platform and logs output lines.
type Executor struct {
	// Tool labels logs and metrics.
	Tool     string
	Launcher Launcher
	// Platform overrides CurrentPlatform when either flag is set.
	Platform Platform
	Sink     Sink
	Logger   *zerolog.Logger
	// DrainTimeout > 0 joins the output pump for at most that long after the
	// child exits. Zero leaves draining best-effort.
	DrainTimeout time.Duration
}

// NewExecutor returns an Executor for tool on the current platform.
func NewExecutor(tool string, launcher Launcher) *Executor {
	return &Executor{Tool: tool, Launcher: launcher, Platform: CurrentPlatform()}
}

// WithSink returns a copy of e that delivers output to sink.
func (e *Executor) WithSink(sink Sink) *Executor {
	clone := *e
	clone.Sink = sink
	return &clone
}

// WithDrainTimeout returns a copy of e that joins its pump for up to timeout.
func (e *Executor) WithDrainTimeout(timeout time.Duration) *Executor {
	clone := *e
	clone.DrainTimeout = timeout
	return &clone
}

// Execute builds, spawns and waits for one tool run. Configuration and spawn
// failures are returned before or instead of running anything; a child that
// exits non-zero yields a nil error and the literal exit code.
func (e *Executor) Execute(env Environment, inv Invocation) (Outcome, error) {
	start := time.Now()
	tool := e.tool()
	runID := uuid.NewString()
	logger := e.logger().With().Str("tool", tool).Str("run_id", runID).Str("env", env.String()).Logger()
	run := runTracker{logger: logger, outcome: Outcome{RunID: runID, State: StateIdle, ExitCode: -1}}

	run.enter(StateBuilding)
	argv, err := Build(env, e.platform(), inv)
	if err != nil {
		observability.RecordToolRun(tool, ResultConfigError, time.Since(start))
		return run.fail(err, start), err
	}
	run.outcome.Command = argv
	logger.Info().Strs("argv", argv).Msg("launching tool")

	run.enter(StateSpawning)
	proc, err := e.launcher().Launch(argv)
	if err != nil {
		if !errors.Is(err, ErrSpawnFailure) {
			err = fmt.Errorf("%w: %w", ErrSpawnFailure, err)
		}
		observability.RecordToolRun(tool, ResultSpawnError, time.Since(start))
		return run.fail(err, start), err
	}

	run.enter(StateRunning)
	pump := StartPump(proc.Output(), countLines(tool, e.sink(logger)), logger)
	code, err := proc.Wait()
	if err != nil {
		err = fmt.Errorf("envexec: wait for %s: %w", argv[0], err)
		observability.RecordToolRun(tool, ResultWaitError, time.Since(start))
		return run.fail(err, start), err
	}

	if e.DrainTimeout > 0 && !pump.Join(e.DrainTimeout) {
		logger.Warn().Dur("drain_timeout", e.DrainTimeout).Int64("lines", pump.Lines()).
			Msg("output not drained before timeout")
	}

	run.outcome.ExitCode = code
	run.enter(StateCompleted)
	run.outcome.Duration = time.Since(start)

	label := runnerLabel(env, inv)
	if code != 0 {
		logger.Warn().Int("exit_code", code).Dur("duration", run.outcome.Duration).
			Msgf("runner %s exited with value %d, check output above for indications of the problem", label, code)
		observability.RecordToolRun(tool, ResultNonZeroExit, run.outcome.Duration)
		return run.outcome, nil
	}

	logger.Info().Dur("duration", run.outcome.Duration).Msgf("%s run finished", label)
	observability.RecordToolRun(tool, ResultSuccess, run.outcome.Duration)
	return run.outcome, nil
}

type runTracker struct {
	logger  zerolog.Logger
	outcome Outcome
}

func (r *runTracker) enter(next State) {
	r.logger.Debug().Str("from", string(r.outcome.State)).Str("to", string(next)).Msg("run state")
	r.outcome.State = next
}

func (r *runTracker) fail(err error, start time.Time) Outcome {
	r.logger.Error().Err(err).Str("state", string(r.outcome.State)).Msg("run failed")
	r.enter(StateFailed)
	r.outcome.Duration = time.Since(start)
	return r.outcome
}

func countLines(tool string, sink Sink) Sink {
	return func(line string) {
		observability.RecordToolOutputLine(tool)
		sink(line)
	}
}

func runnerLabel(env Environment, inv Invocation) string {
	if env.Kind == KindActivated {
		return env.Location
	}
	return inv.Executable
}

func (e *Executor) tool() string {
	if e.Tool == "" {
		return "tool"
	}
	return e.Tool
}

func (e *Executor) platform() Platform {
	if e.Platform.Windows || e.Platform.Posix {
		return e.Platform
	}
	return CurrentPlatform()
}

func (e *Executor) launcher() Launcher {
	if e.Launcher != nil {
		return e.Launcher
	}
	return LocalLauncher{}
}

func (e *Executor) logger() *zerolog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return &log.Logger
}

func (e *Executor) sink(logger zerolog.Logger) Sink {
	if e.Sink != nil {
		return e.Sink
	}
	return LogSink(logger)
}
