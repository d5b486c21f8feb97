package envexec

import (
	"path"
	"strings"
	"unicode"
)

var (
	windowsShell = []string{"cmd", "/C"}
	posixShell   = []string{"bash", "-c"}
)

// posixTrampoline makes `bash -c` run its trailing operands as one discrete
// argv: $0 is the executable and "$@" the arguments.
const posixTrampoline = `exec "$0" "$@"`

// Build turns an environment, platform and invocation into a command vector.
// The shell prefix is always present so activation and the tool share one
// shell invocation.
func Build(env Environment, platform Platform, inv Invocation) ([]string, error) {
	prefix, err := shellPrefix(platform)
	if err != nil {
		return nil, err
	}
	cmd := make([]string, 0, len(prefix)+len(inv.Args)+8)
	cmd = append(cmd, prefix...)

	switch env.Kind {
	case KindNative:
		return buildNative(cmd, platform, inv)
	case KindActivated:
		if strings.TrimSpace(env.Location) == "" {
			return nil, configError(ErrUnsupportedEnvironment, "%s environment has no location", env.Style)
		}
		switch env.Style {
		case StyleConda:
			return buildConda(cmd, env, platform, inv)
		case StyleVenv:
			return buildVenv(cmd, env, platform)
		default:
			return nil, configError(ErrUnrecognizedEnvironmentKind, "activation style %q", env.Style)
		}
	default:
		return nil, configError(ErrUnrecognizedEnvironmentKind, "environment kind %q", env.Kind)
	}
}

func shellPrefix(platform Platform) ([]string, error) {
	switch {
	case platform.Windows:
		return windowsShell, nil
	case platform.Posix:
		return posixShell, nil
	default:
		return nil, configError(ErrUnsupportedEnvironment, "platform %s", platform)
	}
}

func buildNative(cmd []string, platform Platform, inv Invocation) ([]string, error) {
	exe := strings.TrimSpace(inv.Executable)
	if exe == "" {
		return nil, configError(ErrMissingExecutable, "native environment")
	}
	if platform.Posix {
		cmd = append(cmd, posixTrampoline)
	}
	cmd = append(cmd, exe)
	return append(cmd, inv.Args...), nil
}

func buildConda(cmd []string, env Environment, platform Platform, inv Invocation) ([]string, error) {
	selector := strings.TrimSpace(inv.Executable)
	if selector == "" {
		return nil, configError(ErrMissingExecutable, "conda environment %s", env.Location)
	}

	if platform.Windows {
		cmd = append(cmd, "CALL", "conda.bat", "activate", env.Location)
		cmd = append(cmd, "&")
		cmd = append(cmd, selector)
		return append(cmd, inv.Args...), nil
	}

	// POSIX skips `conda activate` and calls the environment's own entry point.
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, path.Join(env.Location, "bin", selector))
	parts = append(parts, inv.Args...)
	return append(cmd, joinPosixCommand(parts)), nil
}

func buildVenv(cmd []string, env Environment, platform Platform) ([]string, error) {
	if !platform.Windows {
		return nil, configError(ErrUnsupportedEnvironment, "venv is only supported on windows, use conda on %s", platform)
	}
	return append(cmd, "cmd", "/C", env.Location+"/Scripts/activate"), nil
}

// joinPosixCommand renders parts as the single script string `bash -c`
// expects. Parts whose trimmed value contains whitespace are wrapped in
// double quotes. Embedded quotes and other shell metacharacters are passed
// through untouched.
func joinPosixCommand(parts []string) string {
	var builder strings.Builder
	for i, part := range parts {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(quoteIfSpaced(part))
	}
	return builder.String()
}

func quoteIfSpaced(part string) string {
	trimmed := strings.TrimSpace(part)
	if !strings.ContainsFunc(trimmed, unicode.IsSpace) {
		return part
	}
	return `"` + trimmed + `"`
}
