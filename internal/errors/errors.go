// Package errors provides centralized error handling for autocompose.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
var (
	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigNotFound indicates that the configuration file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates a malformed or missing required configuration
	// field. It is fatal at startup.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrTreefileInvalid indicates a treefile could not be read or has no ref.
	ErrTreefileInvalid = errors.New("invalid treefile")

	// ErrSubprocessFailed indicates a compose or image-build subprocess could not
	// be started or exited non-zero. It fails only the owning task.
	ErrSubprocessFailed = errors.New("subprocess failed")

	// ErrRepository indicates that revision resolution against the tree
	// repository failed. It is treated as a failure of the owning task.
	ErrRepository = errors.New("repository operation failed")

	// ErrCorruptState indicates the publish link points at neither expected
	// slot. It is fatal and requires operator intervention.
	ErrCorruptState = errors.New("corrupt publish state")

	// ErrProtocol indicates a scheduler programming error such as starting a
	// task for a key that is already running. It is fatal.
	ErrProtocol = errors.New("scheduler protocol violation")

	// ErrLockHeld indicates another scheduler already owns the working directory.
	ErrLockHeld = errors.New("working directory is locked")

	// ErrLockTimeout indicates a file lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrCommandNotConfigured indicates that a mock command was not configured in tests.
	ErrCommandNotConfigured = errors.New("command not configured")

	// ErrHistoryUnavailable indicates the cycle history ledger could not be opened.
	ErrHistoryUnavailable = errors.New("history unavailable")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
