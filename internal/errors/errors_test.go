package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acerrors "github.com/mrz1836/autocompose/internal/errors"
)

// testError is a custom error type used to test default branches
// in UserMessage and Actionable without matching any sentinel.
type testError struct {
	msg string
}

func (e testError) Error() string {
	return e.msg
}

func TestSentinelErrors_Messages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrConfigInvalid", acerrors.ErrConfigInvalid, "invalid configuration"},
		{"ErrSubprocessFailed", acerrors.ErrSubprocessFailed, "subprocess failed"},
		{"ErrRepository", acerrors.ErrRepository, "repository operation failed"},
		{"ErrCorruptState", acerrors.ErrCorruptState, "corrupt publish state"},
		{"ErrProtocol", acerrors.ErrProtocol, "scheduler protocol violation"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		acerrors.ErrConfigInvalid,
		acerrors.ErrTreefileInvalid,
		acerrors.ErrSubprocessFailed,
		acerrors.ErrRepository,
		acerrors.ErrCorruptState,
		acerrors.ErrProtocol,
		acerrors.ErrLockHeld,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b, "%v should not match %v", a, b)
		}
	}
}

func TestWrap_PreservesErrorChain(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"ErrSubprocessFailed", acerrors.ErrSubprocessFailed},
		{"ErrRepository", acerrors.ErrRepository},
		{"ErrCorruptState", acerrors.ErrCorruptState},
		{"ErrProtocol", acerrors.ErrProtocol},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := acerrors.Wrap(tc.sentinel, "context message")

			require.Error(t, wrapped)
			require.ErrorIs(t, wrapped, tc.sentinel)
			assert.Contains(t, wrapped.Error(), "context message")
			assert.Contains(t, wrapped.Error(), tc.sentinel.Error())
		})
	}
}

func TestWrap_NilError(t *testing.T) {
	assert.NoError(t, acerrors.Wrap(nil, "should not appear"))
}

func TestWrap_MultipleWraps(t *testing.T) {
	wrapped1 := acerrors.Wrap(acerrors.ErrRepository, "first wrap")
	wrapped2 := acerrors.Wrap(wrapped1, "second wrap")

	require.ErrorIs(t, wrapped2, acerrors.ErrRepository)
	assert.Equal(t, "second wrap: first wrap: repository operation failed", wrapped2.Error())
}

func TestWrapf_MessageFormat(t *testing.T) {
	wrapped := acerrors.Wrapf(acerrors.ErrSubprocessFailed, "compose %s exited %d", "a.json", 1)

	assert.Equal(t, "compose a.json exited 1: subprocess failed", wrapped.Error())
	assert.NoError(t, acerrors.Wrapf(nil, "task %s", "x"))
	assert.Equal(t, fmt.Sprintf("x %d: %s", 2, acerrors.ErrProtocol), acerrors.Wrapf(acerrors.ErrProtocol, "x %d", 2).Error())
}

func TestActionable_Sentinels(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		containsMsg    string
		containsAction string
	}{
		{"ErrCorruptState", acerrors.ErrCorruptState, "publish link", "images/auto.0"},
		{"ErrConfigInvalid", acerrors.ErrConfigInvalid, "invalid", "treefiles"},
		{"ErrLockHeld", acerrors.ErrLockHeld, "Another autocompose", "--workdir"},
		{"ErrSubprocessFailed", acerrors.ErrSubprocessFailed, "subprocess", "log"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, action := acerrors.Actionable(acerrors.Wrap(tc.err, "wrapped"))
			assert.Contains(t, msg, tc.containsMsg)
			assert.Contains(t, action, tc.containsAction)
		})
	}
}

func TestUserMessage_NilAndUnknown(t *testing.T) {
	assert.Empty(t, acerrors.UserMessage(nil))
	assert.Equal(t, "something odd", acerrors.UserMessage(testError{msg: "something odd"}))

	msg, action := acerrors.Actionable(testError{msg: "unexpected"})
	assert.Equal(t, "unexpected", msg)
	assert.Empty(t, action)
}

func TestExitCode2Error(t *testing.T) {
	exitErr := acerrors.NewExitCode2Error(acerrors.ErrInvalidArgument)

	require.ErrorIs(t, exitErr, acerrors.ErrInvalidArgument)
	assert.Equal(t, acerrors.ErrInvalidArgument.Error(), exitErr.Error())
	assert.True(t, acerrors.IsExitCode2Error(acerrors.Wrap(exitErr, "context")))
	assert.False(t, acerrors.IsExitCode2Error(acerrors.ErrInvalidArgument))
	assert.False(t, acerrors.IsExitCode2Error(nil))
}
