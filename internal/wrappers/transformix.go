package wrappers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/wrapctl/internal/envexec"
	"github.com/danmuck/wrapctl/internal/prefs"
)

const TransformixID = "transformix"

// Transformix runs the elastix transform applier as a native binary.
type Transformix struct {
	prefs    *prefs.Store
	executor *envexec.Executor
}

func NewTransformix(store *prefs.Store, executor *envexec.Executor) *Transformix {
	return &Transformix{prefs: store, executor: toolExecutor(TransformixID, executor)}
}

// Execute runs the configured executable with options. Output is discarded
// unless verbose is set.
func (t *Transformix) Execute(options []string, verbose bool) (envexec.Outcome, error) {
	sink := envexec.DiscardSink
	if verbose {
		sink = nil
	}
	return t.ExecuteWith(options, sink)
}

// ExecuteWith runs the configured executable and hands output to sink.
func (t *Transformix) ExecuteWith(options []string, sink envexec.Sink) (envexec.Outcome, error) {
	return t.executor.WithSink(sink).Execute(envexec.NativeEnvironment(), t.invocation(options))
}

// RunSingle passes command as the only argument, quietly.
func (t *Transformix) RunSingle(command string) (envexec.Outcome, error) {
	return t.Execute([]string{command}, false)
}

func (t *Transformix) invocation(options []string) envexec.Invocation {
	args := make([]string, len(options))
	copy(args, options)
	return envexec.Invocation{Executable: t.prefs.Snapshot().TransformixExePath, Args: args}
}

// TransformixTask applies a transform parameter file to an image, a point
// set, or both.
type TransformixTask struct {
	ImagePath       string
	InputPointsFile string
	OutputFolder    string
	TransformFile   string
	// Threads defaults to 1 when unset.
	Threads int
	Verbose bool
}

func (t TransformixTask) Options() ([]string, error) {
	if strings.TrimSpace(t.OutputFolder) == "" {
		return nil, fmt.Errorf("%w: transformix output folder is required", ErrInvalidTask)
	}
	if strings.TrimSpace(t.TransformFile) == "" {
		return nil, fmt.Errorf("%w: transformix transform file is required", ErrInvalidTask)
	}

	var options []string
	if t.ImagePath != "" {
		options = append(options, "-in", t.ImagePath)
	}
	if t.InputPointsFile != "" {
		options = append(options, "-def", t.InputPointsFile)
	}
	threads := t.Threads
	if threads <= 0 {
		threads = 1
	}
	options = append(options,
		"-out", t.OutputFolder,
		"-tp", t.TransformFile,
		"-threads", strconv.Itoa(threads),
	)
	return options, nil
}

func (t TransformixTask) Run(tx *Transformix) (envexec.Outcome, error) {
	options, err := t.Options()
	if err != nil {
		return envexec.Outcome{State: envexec.StateFailed, ExitCode: -1}, err
	}
	return tx.Execute(options, t.Verbose)
}

func (t *Transformix) Metadata() Metadata {
	return Metadata{
		ID:          TransformixID,
		Name:        "Transformix",
		Description: "Applies elastix transform parameters to images and point sets.",
	}
}

func (t *Transformix) Operations() []Operation {
	return []Operation{{
		Name:        "transform",
		Description: "Apply a transform parameter file.",
		Args:        []string{"in", "def", "out", "tp", "threads"},
	}}
}

func (t *Transformix) Run(action string, args map[string]string) (Result, error) {
	if action != "transform" {
		return Result{}, fmt.Errorf("%w: %s/%s", ErrActionNotFound, TransformixID, action)
	}

	task := TransformixTask{
		ImagePath:       args["in"],
		InputPointsFile: args["def"],
		OutputFolder:    args["out"],
		TransformFile:   args["tp"],
	}
	if raw := strings.TrimSpace(args["threads"]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Result{}, fmt.Errorf("%w: threads: %w", ErrInvalidTask, err)
		}
		task.Threads = n
	}

	options, err := task.Options()
	if err != nil {
		return Result{}, err
	}

	collector := &envexec.CollectSink{}
	outcome, err := collecting(t.executor, collector).Execute(envexec.NativeEnvironment(), t.invocation(options))
	if err != nil {
		return Result{}, err
	}
	return resultFrom(outcome, collector.Lines()), nil
}
