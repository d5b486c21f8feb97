package wrappers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/wrapctl/internal/envexec"
	"github.com/danmuck/wrapctl/internal/prefs"
)

const (
	StardistID = "stardist"
	Predict2D  = "stardist-predict2d"
	Predict3D  = "stardist-predict3d"
)

// runDrainTimeout bounds output collection when Run returns output to a caller.
const runDrainTimeout = 30 * time.Second

// Stardist runs the StarDist prediction entry points from the configured
// conda or venv environment.
type Stardist struct {
	prefs    *prefs.Store
	executor *envexec.Executor
}

func NewStardist(store *prefs.Store, executor *envexec.Executor) *Stardist {
	return &Stardist{prefs: store, executor: toolExecutor(StardistID, executor)}
}

// Execute consumes options[0] as the entry point selector and passes the
// rest through. A nil sink logs output lines.
func (s *Stardist) Execute(options []string, sink envexec.Sink) (envexec.Outcome, error) {
	env, err := s.prefs.Snapshot().StardistEnvironment()
	if err != nil {
		return envexec.Outcome{State: envexec.StateFailed, ExitCode: -1}, err
	}
	return s.executor.WithSink(sink).Execute(env, envexec.InvocationFromArgs(options))
}

// RunSingle runs one selector with no arguments.
func (s *Stardist) RunSingle(command string) (envexec.Outcome, error) {
	return s.Execute([]string{command}, nil)
}

// StardistTask holds prediction settings. Zero thresholds keep the model's
// own values.
type StardistTask struct {
	Dimensions int
	Input      string
	OutputDir  string
	Model      string
	NTiles     []int
	ProbThresh float64
	NMSThresh  float64
}

func (t StardistTask) Selector() (string, error) {
	switch t.Dimensions {
	case 0, 2:
		return Predict2D, nil
	case 3:
		return Predict3D, nil
	default:
		return "", fmt.Errorf("%w: stardist dimensions must be 2 or 3, got %d", ErrInvalidTask, t.Dimensions)
	}
}

// Options renders the task as a selector followed by CLI flags.
func (t StardistTask) Options() ([]string, error) {
	selector, err := t.Selector()
	if err != nil {
		return nil, err
	}
	required := []struct{ name, value string }{
		{"input", t.Input},
		{"output dir", t.OutputDir},
		{"model", t.Model},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return nil, fmt.Errorf("%w: stardist %s is required", ErrInvalidTask, field.name)
		}
	}

	options := []string{selector, "-i", t.Input, "-o", t.OutputDir, "-m", t.Model}
	if len(t.NTiles) > 0 {
		options = append(options, "--n_tiles")
		for _, n := range t.NTiles {
			if n <= 0 {
				return nil, fmt.Errorf("%w: stardist n_tiles must be positive, got %d", ErrInvalidTask, n)
			}
			options = append(options, strconv.Itoa(n))
		}
	}
	if t.ProbThresh > 0 {
		options = append(options, "--prob_thresh", formatFloat(t.ProbThresh))
	}
	if t.NMSThresh > 0 {
		options = append(options, "--nms_thresh", formatFloat(t.NMSThresh))
	}
	return options, nil
}

func (t StardistTask) Run(s *Stardist, sink envexec.Sink) (envexec.Outcome, error) {
	options, err := t.Options()
	if err != nil {
		return envexec.Outcome{State: envexec.StateFailed, ExitCode: -1}, err
	}
	return s.Execute(options, sink)
}

func (s *Stardist) Metadata() Metadata {
	return Metadata{
		ID:          StardistID,
		Name:        "StarDist",
		Description: "Star-convex object segmentation run from a conda or venv environment.",
	}
}

func (s *Stardist) Operations() []Operation {
	args := []string{"input", "outdir", "model", "n_tiles", "prob_thresh", "nms_thresh"}
	return []Operation{
		{Name: "predict2d", Description: "Segment a 2D image.", Args: args},
		{Name: "predict3d", Description: "Segment a 3D stack.", Args: args},
	}
}

func (s *Stardist) Run(action string, args map[string]string) (Result, error) {
	task := StardistTask{
		Input:     args["input"],
		OutputDir: args["outdir"],
		Model:     args["model"],
	}
	switch action {
	case "predict2d":
		task.Dimensions = 2
	case "predict3d":
		task.Dimensions = 3
	default:
		return Result{}, fmt.Errorf("%w: %s/%s", ErrActionNotFound, StardistID, action)
	}

	var err error
	if task.NTiles, err = parseInts(args["n_tiles"]); err != nil {
		return Result{}, fmt.Errorf("%w: n_tiles: %w", ErrInvalidTask, err)
	}
	if task.ProbThresh, err = parseFloat(args["prob_thresh"]); err != nil {
		return Result{}, fmt.Errorf("%w: prob_thresh: %w", ErrInvalidTask, err)
	}
	if task.NMSThresh, err = parseFloat(args["nms_thresh"]); err != nil {
		return Result{}, fmt.Errorf("%w: nms_thresh: %w", ErrInvalidTask, err)
	}

	options, err := task.Options()
	if err != nil {
		return Result{}, err
	}
	env, err := s.prefs.Snapshot().StardistEnvironment()
	if err != nil {
		return Result{}, err
	}

	collector := &envexec.CollectSink{}
	outcome, err := collecting(s.executor, collector).Execute(env, envexec.InvocationFromArgs(options))
	if err != nil {
		return Result{}, err
	}
	return resultFrom(outcome, collector.Lines()), nil
}

func toolExecutor(tool string, executor *envexec.Executor) *envexec.Executor {
	if executor == nil {
		return envexec.NewExecutor(tool, nil)
	}
	clone := *executor
	clone.Tool = tool
	return &clone
}

// collecting joins the pump so the returned output is complete.
func collecting(executor *envexec.Executor, collector *envexec.CollectSink) *envexec.Executor {
	out := executor.WithSink(collector.Sink())
	if out.DrainTimeout <= 0 {
		out.DrainTimeout = runDrainTimeout
	}
	return out
}

func parseInts(raw string) ([]int, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloat(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
