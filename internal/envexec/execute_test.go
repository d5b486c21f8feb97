package envexec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/wrapctl/internal/testutil/testlog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type fakeProcess struct {
	output   io.Reader
	exitCode int
	waitErr  error
}

func (p *fakeProcess) Output() io.Reader  { return p.output }
func (p *fakeProcess) Wait() (int, error) { return p.exitCode, p.waitErr }

// countingLauncher records every spawn attempt.
type countingLauncher struct {
	mu       sync.Mutex
	launches [][]string
	process  *fakeProcess
	err      error
}

func (l *countingLauncher) Launch(argv []string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches = append(l.launches, append([]string(nil), argv...))
	if l.err != nil {
		return nil, l.err
	}
	return l.process, nil
}

func (l *countingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

func quietExecutor(launcher Launcher, platform Platform, sink Sink) *Executor {
	logger := zerolog.Nop()
	return &Executor{
		Tool:         "test",
		Launcher:     launcher,
		Platform:     platform,
		Sink:         sink,
		Logger:       &logger,
		DrainTimeout: 5 * time.Second,
	}
}

func TestExecuteVenvOnPosixNeverSpawns(t *testing.T) {
	testlog.Start(t)

	launcher := &countingLauncher{process: &fakeProcess{output: strings.NewReader("")}}
	executor := quietExecutor(launcher, PosixPlatform, DiscardSink)
	env := Environment{Kind: KindActivated, Location: "/opt/venvs/sd", Style: StyleVenv}

	outcome, err := executor.Execute(env, Invocation{Executable: "stardist-predict2d"})
	if !errors.Is(err, ErrConfiguration) || !errors.Is(err, ErrUnsupportedEnvironment) {
		t.Fatalf("expected unsupported configuration error, got %v", err)
	}
	if launcher.count() != 0 {
		t.Fatalf("expected zero spawn attempts, got %d", launcher.count())
	}
	if outcome.State != StateFailed || outcome.Command != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	log.Debug().Msgf("envexec/execute: venv on posix rejected before spawn: %v", err)
}

func TestExecuteUnrecognizedKindNeverSpawns(t *testing.T) {
	launcher := &countingLauncher{process: &fakeProcess{output: strings.NewReader("")}}
	executor := quietExecutor(launcher, WindowsPlatform, DiscardSink)

	_, err := executor.Execute(Environment{Kind: "container"}, Invocation{Executable: "x"})
	if !errors.Is(err, ErrUnrecognizedEnvironmentKind) {
		t.Fatalf("expected ErrUnrecognizedEnvironmentKind, got %v", err)
	}
	if launcher.count() != 0 {
		t.Fatalf("expected zero spawn attempts, got %d", launcher.count())
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	launcher := &countingLauncher{err: errors.New("fork: resource temporarily unavailable")}
	executor := quietExecutor(launcher, PosixPlatform, DiscardSink)

	outcome, err := executor.Execute(NativeEnvironment(), Invocation{Executable: "transformix"})
	if !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("expected ErrSpawnFailure, got %v", err)
	}
	if outcome.State != StateFailed {
		t.Fatalf("expected failed state, got %s", outcome.State)
	}
	if launcher.count() != 1 {
		t.Fatalf("expected one spawn attempt, got %d", launcher.count())
	}
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	collector := &CollectSink{}
	launcher := &countingLauncher{process: &fakeProcess{
		output:   strings.NewReader("loading model\nerror: no such file\n"),
		exitCode: 17,
	}}
	executor := quietExecutor(launcher, WindowsPlatform, collector.Sink())

	outcome, err := executor.Execute(NativeEnvironment(), Invocation{Executable: "transformix", Args: []string{"-tp", "x"}})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if outcome.ExitCode != 17 || outcome.Success() || outcome.State != StateCompleted {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.TimedOut {
		t.Fatalf("timed out is reserved and must stay false")
	}
	if outcome.RunID == "" {
		t.Fatalf("expected a run id")
	}
	wantArgv := []string{"cmd", "/C", "transformix", "-tp", "x"}
	if !reflect.DeepEqual(launcher.launches[0], wantArgv) {
		t.Fatalf("unexpected launched argv: %q", launcher.launches[0])
	}
	if got := collector.Lines(); len(got) != 2 || got[1] != "error: no such file" {
		t.Fatalf("unexpected output lines: %q", got)
	}
}

func TestExecuteWaitErrorFails(t *testing.T) {
	launcher := &countingLauncher{process: &fakeProcess{
		output:  strings.NewReader(""),
		waitErr: errors.New("wait: no child processes"),
	}}
	executor := quietExecutor(launcher, PosixPlatform, DiscardSink)

	outcome, err := executor.Execute(NativeEnvironment(), Invocation{Executable: "transformix"})
	if err == nil || outcome.State != StateFailed {
		t.Fatalf("expected wait failure, outcome=%+v err=%v", outcome, err)
	}
}

func TestExecutorWithSinkLeavesOriginalUntouched(t *testing.T) {
	base := quietExecutor(&countingLauncher{}, PosixPlatform, nil)
	derived := base.WithSink(DiscardSink).WithDrainTimeout(time.Second)
	if base.Sink != nil || base.DrainTimeout != 5*time.Second {
		t.Fatalf("base executor mutated: %+v", base)
	}
	if derived.Sink == nil || derived.DrainTimeout != time.Second {
		t.Fatalf("derived executor not configured: %+v", derived)
	}
}

func requirePosixShell(t *testing.T, tools ...string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	for _, tool := range append([]string{"bash"}, tools...) {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available: %v", tool, err)
		}
	}
}

func TestExecuteNativeEchoEndToEnd(t *testing.T) {
	requirePosixShell(t, "echo")
	testlog.Start(t)

	collector := &CollectSink{}
	executor := quietExecutor(LocalLauncher{}, PosixPlatform, collector.Sink())

	outcome, err := executor.Execute(NativeEnvironment(), Invocation{Executable: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.ExitCode != 0 || !outcome.Success() {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if got := collector.Lines(); !reflect.DeepEqual(got, []string{"hello"}) {
		t.Fatalf("expected one line hello, got %q", got)
	}
}

func TestExecuteLargeOutputDoesNotDeadlock(t *testing.T) {
	requirePosixShell(t, "seq")

	const n = 10000
	collector := &CollectSink{}
	executor := quietExecutor(LocalLauncher{}, PosixPlatform, collector.Sink())

	done := make(chan struct{})
	var outcome Outcome
	var err error
	go func() {
		defer close(done)
		outcome, err = executor.Execute(NativeEnvironment(), Invocation{Executable: "seq", Args: []string{"1", strconv.Itoa(n)}})
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatalf("execute did not return; output pipe likely not drained")
	}
	if err != nil || outcome.ExitCode != 0 {
		t.Fatalf("unexpected result: outcome=%+v err=%v", outcome, err)
	}

	lines := collector.Lines()
	if len(lines) != n {
		t.Fatalf("expected %d lines, got %d", n, len(lines))
	}
	for i, line := range lines {
		if line != strconv.Itoa(i+1) {
			t.Fatalf("line %d out of order: %q", i, line)
		}
	}
}

func TestExecuteExitCodePropagation(t *testing.T) {
	requirePosixShell(t, "sh")

	for _, code := range []int{0, 17} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			executor := quietExecutor(LocalLauncher{}, PosixPlatform, DiscardSink)
			inv := Invocation{Executable: "sh", Args: []string{"-c", fmt.Sprintf("echo to-stderr >&2; exit %d", code)}}
			outcome, err := executor.Execute(NativeEnvironment(), inv)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if outcome.ExitCode != code {
				t.Fatalf("expected exit code %d, got %d", code, outcome.ExitCode)
			}
			if outcome.Success() != (code == 0) {
				t.Fatalf("success flag mismatch for code %d", code)
			}
		})
	}
}

func TestExecuteCondaOnPosixUsesEnvironmentBin(t *testing.T) {
	requirePosixShell(t)

	envDir := t.TempDir()
	binDir := filepath.Join(envDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	script := "#!/bin/sh\nfor a in \"$@\"; do echo \"arg=$a\"; done\necho \"err line\" >&2\n"
	if err := os.WriteFile(filepath.Join(binDir, "fake-predict"), []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	collector := &CollectSink{}
	executor := quietExecutor(LocalLauncher{}, PosixPlatform, collector.Sink())
	env := Environment{Kind: KindActivated, Location: envDir, Style: StyleConda}

	outcome, err := executor.Execute(env, InvocationFromArgs([]string{"fake-predict", "-i", "my image.tif"}))
	if err != nil || !outcome.Success() {
		t.Fatalf("unexpected result: outcome=%+v err=%v", outcome, err)
	}
	want := []string{"arg=-i", "arg=my image.tif", "err line"}
	if got := collector.Lines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestLocalLauncherSpawnFailure(t *testing.T) {
	_, err := LocalLauncher{}.Launch([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	if !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("expected ErrSpawnFailure, got %v", err)
	}

	if _, err := (LocalLauncher{}).Launch(nil); !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("expected ErrSpawnFailure for empty argv, got %v", err)
	}
}
