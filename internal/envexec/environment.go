package envexec

import (
	"runtime"
	"strings"
)

// Kind selects how a tool is reached.
type Kind string

const (
	KindNative    Kind = "native"
	KindActivated Kind = "activated"
)

// ActivationStyle selects the activation mechanism of an activated environment.
type ActivationStyle string

const (
	StyleConda ActivationStyle = "conda"
	StyleVenv  ActivationStyle = "venv"
)

// Environment is the runtime a tool is invoked in. Style and Location are
// only read when Kind is KindActivated.
type Environment struct {
	Kind     Kind
	Location string
	Style    ActivationStyle
}

// NativeEnvironment describes a binary invoked directly.
func NativeEnvironment() Environment {
	return Environment{Kind: KindNative}
}

// ParseEnvType maps a configured environment type ("conda" or "venv") and its
// directory onto an activated Environment.
func ParseEnvType(envType string, location string) (Environment, error) {
	style := ActivationStyle(strings.ToLower(strings.TrimSpace(envType)))
	switch style {
	case StyleConda, StyleVenv:
		return Environment{Kind: KindActivated, Location: location, Style: style}, nil
	default:
		return Environment{}, configError(ErrUnrecognizedEnvironmentKind, "environment type %q", envType)
	}
}

func (e Environment) String() string {
	if e.Kind == KindActivated {
		return string(e.Style) + ":" + e.Location
	}
	return string(e.Kind)
}

// Platform is the OS family a command vector is built for.
type Platform struct {
	Windows bool
	Posix   bool
}

var (
	WindowsPlatform = Platform{Windows: true}
	PosixPlatform   = Platform{Posix: true}
)

// CurrentPlatform reports the OS family of the running process.
func CurrentPlatform() Platform {
	return platformFor(runtime.GOOS)
}

func platformFor(goos string) Platform {
	switch goos {
	case "windows":
		return WindowsPlatform
	case "darwin", "linux", "freebsd", "netbsd", "openbsd", "dragonfly", "solaris", "illumos", "aix":
		return PosixPlatform
	default:
		return Platform{}
	}
}

func (p Platform) String() string {
	switch {
	case p.Windows:
		return "windows"
	case p.Posix:
		return "posix"
	default:
		return "unknown"
	}
}

// Invocation is the executable selector plus its ordered, opaque arguments.
type Invocation struct {
	Executable string
	Args       []string
}

// InvocationFromArgs consumes args[0] as the executable selector. The input
// slice is not modified.
func InvocationFromArgs(args []string) Invocation {
	if len(args) == 0 {
		return Invocation{}
	}
	rest := make([]string, len(args)-1)
	copy(rest, args[1:])
	return Invocation{Executable: args[0], Args: rest}
}
