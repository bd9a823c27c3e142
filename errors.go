package witchver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormat is returned for malformed versions, identifiers and describe output
	ErrFormat = errors.New("invalid format")

	// ErrMissingArguments is returned when a version is built without a string or a full core
	ErrMissingArguments = errors.New("missing arguments")

	// ErrUnexpectedArgument is returned when a record carries an unknown field
	ErrUnexpectedArgument = errors.New("unexpected argument")

	// ErrType is returned when comparing a version against an unsupported operand
	ErrType = errors.New("unsupported type")

	// ErrRuntime is the class of environment failures raised while inspecting a repository.
	// Callers falling back to a persisted record should test for this class only.
	ErrRuntime = errors.New("repository inspection failed")

	// ErrNotRepository is returned when the path is not inside a Git repository
	ErrNotRepository = fmt.Errorf("%w: path is not inside a git repository", ErrRuntime)
)

// CommandError reports a git invocation that could not be started or exited non-zero
type CommandError struct {
	Step     string
	Args     []string
	ExitCode int
	Started  bool
}

func (e *CommandError) Error() string {
	cmd := "git " + strings.Join(e.Args, " ")
	if !e.Started {
		return fmt.Sprintf("%s: could not run %q", e.Step, cmd)
	}
	return fmt.Sprintf("%s: %q exited with status %d", e.Step, cmd, e.ExitCode)
}

// Is makes every CommandError match ErrRuntime
func (e *CommandError) Is(target error) bool {
	return target == ErrRuntime
}
