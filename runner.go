package witchver

import (
	"errors"
	"os/exec"
	"strings"
)

// Result is the outcome of running an external program
type Result struct {
	// Stdout is the trimmed standard output
	Stdout string
	// ExitCode is the process exit status
	ExitCode int
	// Started is false when the program could not be launched at all
	Started bool
}

// OK reports whether the program ran and exited with status zero
func (r Result) OK() bool {
	return r.Started && r.ExitCode == 0
}

// Runner runs an external program in a directory. It never returns an error:
// failing to launch is reported through Result.Started.
type Runner interface {
	Run(dir, name string, args ...string) Result
}

// ExecRunner runs programs with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(dir, name string, args ...string) Result {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}
		}
		return Result{
			Stdout:   strings.TrimSpace(string(output)),
			ExitCode: exitErr.ExitCode(),
			Started:  true,
		}
	}

	return Result{
		Stdout:  strings.TrimSpace(string(output)),
		Started: true,
	}
}
