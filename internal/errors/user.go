package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries is the pre-built mapping of sentinel errors to their user-facing messages.
// This single source of truth ensures UserMessage and Actionable stay in sync.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Configuration
	// ===================
	{
		err: ErrConfigNotFound,
		info: ErrorInfo{
			Message: "Configuration file not found.",
			Action:  "Pass the path to an autobuilder JSON file: 'autocompose run CONFIG'.",
		},
	},
	{
		err: ErrConfigInvalid,
		info: ErrorInfo{
			Message: "The configuration file is invalid.",
			Action:  "Check that 'treefiles' is a non-empty list and 'poll-timeout' is a positive number of seconds.",
		},
	},
	{
		err: ErrTreefileInvalid,
		info: ErrorInfo{
			Message: "A treefile could not be loaded.",
			Action:  "Treefile paths are relative to the config file and each treefile needs a 'ref'.",
		},
	},

	// ===================
	// Scheduler state
	// ===================
	{
		err: ErrCorruptState,
		info: ErrorInfo{
			Message: "The image publish link points at an unexpected target.",
			Action:  "Inspect images/auto by hand and point it at images/auto.0 or images/auto.1 before restarting.",
		},
	},
	{
		err: ErrProtocol,
		info: ErrorInfo{
			Message: "The scheduler reached an impossible state and stopped.",
			Action:  "Report this with the log file; restarting the scheduler is safe.",
		},
	},
	{
		err: ErrLockHeld,
		info: ErrorInfo{
			Message: "Another autocompose process is using this working directory.",
			Action:  "Stop the other process or choose a different --workdir.",
		},
	},
	{
		err: ErrLockTimeout,
		info: ErrorInfo{
			Message: "Timed out waiting for the working directory lock.",
			Action:  "Stop the other process or choose a different --workdir.",
		},
	},

	// ===================
	// Builds
	// ===================
	{
		err: ErrSubprocessFailed,
		info: ErrorInfo{
			Message: "A build subprocess failed.",
			Action:  "Check the subprocess log in the task's version directory.",
		},
	},
	{
		err: ErrRepository,
		info: ErrorInfo{
			Message: "Could not read revisions from the tree repository.",
			Action:  "Verify that <workdir>/repo is an initialized ostree repository.",
		},
	},
	{
		err: ErrHistoryUnavailable,
		info: ErrorInfo{
			Message: "The cycle history could not be opened.",
			Action:  "",
		},
	},

	// ===================
	// Input
	// ===================
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Invalid output format specified.",
			Action:  "Use --output text or --output json.",
		},
	},
	{
		err: ErrInvalidArgument,
		info: ErrorInfo{
			Message: "An invalid argument was provided.",
			Action:  "Check the command help for valid arguments.",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
// Built once from errorInfoEntries during package initialization.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

// buildErrorInfoMap creates a map from the errorInfoEntries slice.
// This is called once during package init for O(1) direct lookups.
func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// It first tries O(1) direct map lookup for unwrapped sentinel errors,
// then falls back to errors.Is() traversal for wrapped errors.
// Returns an ErrorInfo with the original error message if not found.
func getErrorInfo(err error) ErrorInfo {
	// Fast path: O(1) lookup for direct sentinel errors
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	// Slow path: errors.Is() for wrapped errors
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// This function maps sentinel errors to helpful, actionable messages
// that are suitable for display to end users.
//
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take to resolve or work around the issue.
//
// For errors that are not recoverable or have no clear action, the action
// string will be empty.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
