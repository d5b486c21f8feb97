package envexec

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration               = errors.New("envexec: invalid environment configuration")
	ErrUnsupportedEnvironment      = errors.New("envexec: unsupported environment")
	ErrUnrecognizedEnvironmentKind = errors.New("envexec: unrecognized environment kind")
	ErrMissingExecutable           = errors.New("envexec: missing executable")
	ErrSpawnFailure                = errors.New("envexec: spawn failure")
	ErrStreamRead                  = errors.New("envexec: output stream read failed")
)

// configError tags cause as a configuration failure so callers can match
// either the specific cause or ErrConfiguration.
func configError(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrConfiguration, cause, fmt.Sprintf(format, args...))
}

func spawnError(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrSpawnFailure, fmt.Errorf(format, args...))
}
