// Package process launches and stops the external build tools.
//
// Builds are long-running and asynchronous: Spawn returns as soon as the
// child has started and reports its exit through a callback. Short
// synchronous queries go through Runner instead.
package process

import (
	stderrors "errors"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"

	"github.com/mrz1836/autocompose/internal/errors"
)

// Command describes one subprocess launch.
type Command struct {
	// Argv is the program and its arguments. Argv[0] is looked up in PATH.
	Argv []string
	// Dir is the working directory.
	Dir string
	// LogPath receives stdout and stderr, truncated at launch. Empty discards output.
	LogPath string
	// Env is appended to the scheduler's own environment.
	Env []string
}

// String returns the shell-quoted command line.
func (c Command) String() string {
	return QuoteArgv(c.Argv)
}

// Process is a started subprocess.
type Process interface {
	PID() int
}

// ExitFunc receives the outcome of a subprocess: nil on a zero exit status,
// an error wrapping ErrSubprocessFailed otherwise. It is called from a
// goroutine owned by the spawner.
type ExitFunc func(err error)

// Spawner starts subprocesses.
type Spawner interface {
	Spawn(cmd Command, onExit ExitFunc) (Process, error)
}

// ExecSpawner implements Spawner with os/exec.
type ExecSpawner struct{}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Spawn starts cmd and returns once it is running. onExit is called exactly
// once, after the child has been reaped and its log file closed.
//
// The child is not bound to a context; ProcessManager stops it on shutdown.
func (ExecSpawner) Spawn(c Command, onExit ExitFunc) (Process, error) {
	if len(c.Argv) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "empty argv")
	}

	cmd := exec.Command(c.Argv[0], c.Argv[1:]...) //#nosec G204 -- argv comes from the operator's configuration
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var logFile *os.File
	if c.LogPath != "" {
		f, err := os.OpenFile(c.LogPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //#nosec G302 G304 -- build logs are meant to be readable
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open log %s", c.LogPath)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, errors.Wrapf(errors.ErrSubprocessFailed, "failed to start %s: %v", c, err)
	}

	go func() {
		waitErr := cmd.Wait()
		if logFile != nil {
			_ = logFile.Close()
		}
		onExit(ExitError(waitErr))
	}()

	return &execProcess{cmd: cmd}, nil
}

// ExitError converts the result of exec.Cmd.Wait into nil or an error
// wrapping ErrSubprocessFailed carrying the exit status.
func ExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return errors.Wrapf(errors.ErrSubprocessFailed, "%s", exitErr.ProcessState.String())
	}
	return errors.Wrapf(errors.ErrSubprocessFailed, "%v", err)
}

// QuoteArgv renders argv as a shell command line for logs.
func QuoteArgv(argv []string) string {
	return shellquote.Join(argv...)
}

var _ Spawner = ExecSpawner{}
