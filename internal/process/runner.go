package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os/exec"
)

// Runner executes a command to completion and captures its output.
// This allows for testing by injecting mock implementations.
type Runner interface {
	Run(ctx context.Context, dir string, argv ...string) (stdout, stderr string, exitCode int, err error)
}

// DefaultRunner implements Runner using os/exec.
type DefaultRunner struct {
	// LiveOut, when set, also receives stdout and stderr as they are produced.
	LiveOut io.Writer
}

// Run executes argv in dir. exitCode is the child's exit status, or 1 when
// the child could not be started.
func (r *DefaultRunner) Run(ctx context.Context, dir string, argv ...string) (stdout, stderr string, exitCode int, err error) {
	if len(argv) == 0 {
		return "", "", 1, exec.ErrNotFound
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //#nosec G204 -- argv is constructed internally
	cmd.Dir = dir

	var outBuf, errBuf bytes.Buffer
	if r.LiveOut != nil {
		cmd.Stdout = io.MultiWriter(&outBuf, r.LiveOut)
		cmd.Stderr = io.MultiWriter(&errBuf, r.LiveOut)
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	err = cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}

	return stdout, stderr, exitCode, err
}

var _ Runner = (*DefaultRunner)(nil)
