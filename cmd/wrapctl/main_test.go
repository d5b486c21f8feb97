package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/danmuck/wrapctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	prefsPath := filepath.Join(dir, "prefs.toml")
	cfgPath := filepath.Join(dir, "wrapctl.toml")
	body := "[server]\nid = \"wrapctl-test\"\naddr = \":0\"\n\n[prefs]\npath = \"" + filepath.ToSlash(prefsPath) + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, prefsPath
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestPrefsCommands(t *testing.T) {
	testlog.Start(t)
	cfgPath, prefsPath := writeConfig(t)

	if code, _, errOut := runCLI(t, "-config", cfgPath, "prefs", "set-env-type", "venv"); code != 0 {
		t.Fatalf("set-env-type: code=%d stderr=%s", code, errOut)
	}
	if _, err := os.Stat(prefsPath); err != nil {
		t.Fatalf("expected prefs file to be written: %v", err)
	}
	if code, _, _ := runCLI(t, "-config", cfgPath, "prefs", "set-env-type", "pipenv"); code != 1 {
		t.Fatalf("expected invalid env type to fail with 1, got %d", code)
	}
	if code, _, _ := runCLI(t, "-config", cfgPath, "prefs", "set-exe"); code != 1 {
		t.Fatalf("expected missing value to fail with 1, got %d", code)
	}

	code, out, _ := runCLI(t, "-config", cfgPath, "prefs", "show")
	if code != 0 {
		t.Fatalf("show: code=%d", code)
	}
	if !strings.Contains(out, "stardist_env_type = venv") || !strings.Contains(out, "transformix_exe_path = transformix") {
		t.Fatalf("unexpected prefs output:\n%s", out)
	}

	if code, _, _ := runCLI(t, "-config", cfgPath, "prefs", "set-exe", "/opt/elastix/transformix"); code != 0 {
		t.Fatalf("set-exe failed")
	}
	if code, _, _ := runCLI(t, "-config", cfgPath, "prefs", "exe-in-path"); code != 0 {
		t.Fatalf("exe-in-path failed")
	}
	_, out, _ = runCLI(t, "-config", cfgPath, "prefs", "show")
	if !strings.Contains(out, "transformix_exe_path = transformix") {
		t.Fatalf("expected exe reset to PATH lookup:\n%s", out)
	}
}

func TestUsageErrors(t *testing.T) {
	testlog.Start(t)
	cfgPath, _ := writeConfig(t)

	tests := [][]string{
		{"-config", cfgPath},
		{"-config", cfgPath, "launch"},
		{"-config", cfgPath, "run"},
		{"-config", cfgPath, "run", "elastix"},
		{"-config", cfgPath, "run", "stardist"},
		{"-config", cfgPath, "prefs"},
		{"-config", cfgPath, "prefs", "reset"},
	}
	for _, args := range tests {
		if code, _, _ := runCLI(t, args...); code != 2 {
			t.Fatalf("args %q: expected usage exit 2, got %d", args, code)
		}
	}
}

func TestInvalidConfigFails(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[run]\ndrain_timeout = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if code, _, errOut := runCLI(t, "-config", path, "prefs", "show"); code != 1 || !strings.Contains(errOut, "drain_timeout") {
		t.Fatalf("expected config failure, code=%d stderr=%s", code, errOut)
	}
}

func TestRunTransformixPropagatesExitCode(t *testing.T) {
	testlog.Start(t)
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}

	cfgPath, _ := writeConfig(t)
	script := filepath.Join(t.TempDir(), "fake transformix")
	body := "#!/bin/sh\necho \"args: $*\"\necho \"count: $#\"\nexit 3\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if code, _, errOut := runCLI(t, "-config", cfgPath, "prefs", "set-exe", script); code != 0 {
		t.Fatalf("set-exe: code=%d stderr=%s", code, errOut)
	}

	code, out, _ := runCLI(t, "-config", cfgPath, "run", "transformix", "-tp", "my params.txt", "-out", "out")
	if code != 3 {
		t.Fatalf("expected exit code 3, got %d (stdout=%q)", code, out)
	}
	if !strings.Contains(out, "args: -tp my params.txt -out out") || !strings.Contains(out, "count: 4") {
		t.Fatalf("unexpected tool output: %q", out)
	}
}
