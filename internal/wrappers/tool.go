package wrappers

import (
	"errors"

	"github.com/danmuck/wrapctl/internal/envexec"
)

var (
	ErrInvalidTask     = errors.New("wrappers: invalid task")
	ErrActionNotFound  = errors.New("wrappers: action not found")
	ErrToolNotFound    = errors.New("wrappers: tool not found")
	ErrToolExists      = errors.New("wrappers: tool already exists")
	ErrToolNil         = errors.New("wrappers: tool is nil")
	ErrInvalidMetadata = errors.New("wrappers: invalid tool metadata")
)

// Metadata is a tool's identity and display data.
type Metadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Operation is one action a tool accepts.
type Operation struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Args        []string `json:"args,omitempty"`
}

// Result is a finished run with the output lines that were drained.
type Result struct {
	RunID    string   `json:"run_id"`
	Status   string   `json:"status"`
	ExitCode int      `json:"exit_code"`
	Success  bool     `json:"success"`
	Output   []string `json:"output"`
}

// Tool is the dispatch boundary used by the HTTP surface and the CLI.
type Tool interface {
	Metadata() Metadata
	Operations() []Operation
	Run(action string, args map[string]string) (Result, error)
}

func resultFrom(outcome envexec.Outcome, lines []string) Result {
	status := "ok"
	if !outcome.Success() {
		status = "failed"
	}
	if lines == nil {
		lines = []string{}
	}
	return Result{
		RunID:    outcome.RunID,
		Status:   status,
		ExitCode: outcome.ExitCode,
		Success:  outcome.Success(),
		Output:   lines,
	}
}
