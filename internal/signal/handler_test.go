package signal

import (
	"context"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Terminate_CancelsContext(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.dispatch(syscall.SIGTERM)

	require.Error(t, h.Context().Err())
	assert.Equal(t, context.Canceled, h.Context().Err())

	select {
	case <-h.Interrupted():
	default:
		t.Fatal("interrupted channel should be closed after signal")
	}
}

func TestHandler_MultipleSignals_OnlyProcessedOnce(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.handleSignal()
	h.handleSignal()
	h.dispatch(syscall.SIGINT)

	require.Error(t, h.Context().Err())
}

func TestHandler_Hangup_RequestsReload(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.dispatch(syscall.SIGHUP)
	h.dispatch(syscall.SIGHUP)

	assert.NoError(t, h.Context().Err(), "SIGHUP must not cancel the daemon")

	select {
	case <-h.Reload():
	default:
		t.Fatal("reload should be pending after SIGHUP")
	}

	select {
	case <-h.Reload():
		t.Fatal("repeated SIGHUPs should coalesce into one request")
	default:
	}
}

func TestHandler_Stop_IsIdempotent(t *testing.T) {
	h := NewHandler(context.Background())

	h.Stop()
	h.Stop()

	assert.Error(t, h.Context().Err())
}

func TestHandler_ParentCancel_PropagatesToContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewHandler(parent)
	defer h.Stop()

	cancel()
	<-h.Context().Done()

	select {
	case <-h.Interrupted():
		t.Fatal("parent cancellation is not an interrupt")
	default:
	}
}
