// Package signal turns process signals into daemon lifecycle events.
//
// SIGINT and SIGTERM cancel the daemon context. SIGHUP asks for an
// immediate poll without waiting for the timer.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler manages graceful shutdown by listening for interrupt signals.
// It wraps a context and cancels it when SIGINT or SIGTERM is received.
type Handler struct {
	ctx         context.Context //nolint:containedctx // handler owns the daemon context lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	reload      chan struct{}
	done        chan struct{} // signals listen() to exit cleanly
	once        sync.Once
	stopOnce    sync.Once
	sigChan     chan os.Signal
}

// NewHandler creates a signal handler that listens for SIGINT, SIGTERM and SIGHUP.
//
// Usage:
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//	ctx = h.Context()
//
//	for {
//	    select {
//	    case <-h.Reload():
//	        // poll now
//	    case <-ctx.Done():
//	        return
//	    }
//	}
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		reload:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		// Buffer of 1 ensures signal.Notify doesn't drop signals if handler is busy.
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go h.listen()

	return h
}

// Context returns the cancellable context.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel that closes when a termination signal is received.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// Reload returns a channel that receives a value per SIGHUP.
// Requests arriving while one is still queued are coalesced.
func (h *Handler) Reload() <-chan struct{} {
	return h.reload
}

// Stop cleans up the signal handler and stops listening for signals.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}

func (h *Handler) handleSignal() {
	h.once.Do(func() {
		h.cancel()
		close(h.interrupted)
	})
}

func (h *Handler) handleReload() {
	select {
	case h.reload <- struct{}{}:
	default:
	}
}

func (h *Handler) dispatch(sig os.Signal) {
	if sig == syscall.SIGHUP {
		h.handleReload()
		return
	}
	h.handleSignal()
}

func (h *Handler) listen() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.done:
			return
		case sig := <-h.sigChan:
			h.dispatch(sig)
		}
	}
}
