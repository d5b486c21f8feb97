package envexec

import (
	"errors"
	"io"
	"os"
	"os/exec"
)

// Process is a spawned child with one merged output stream.
type Process interface {
	// Output is the child's stdout and stderr as one ordered stream.
	Output() io.Reader
	// Wait blocks until the child exits and returns its exit code verbatim.
	Wait() (int, error)
}

// Launcher spawns a command vector.
type Launcher interface {
	Launch(argv []string) (Process, error)
}

// LocalLauncher spawns children on the local host. Children inherit the
// parent environment and working directory.
type LocalLauncher struct{}

func (LocalLauncher) Launch(argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, spawnError("empty command vector")
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, spawnError("output pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = writer
	cmd.Stderr = writer
	if err := cmd.Start(); err != nil {
		reader.Close()
		writer.Close()
		return nil, spawnError("%s: %w", argv[0], err)
	}
	// The child owns its copy of the write end; EOF reaches the reader once it exits.
	writer.Close()

	return &localProcess{cmd: cmd, output: reader}, nil
}

type localProcess struct {
	cmd    *exec.Cmd
	output *os.File
}

func (p *localProcess) Output() io.Reader {
	return p.output
}

func (p *localProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
