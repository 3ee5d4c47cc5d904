package metrics

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/autocompose/internal/errors"
)

const shutdownTimeout = 5 * time.Second

// Serve listens on addr and serves /metrics until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return m.ServeListener(ctx, ln)
}

// ServeListener serves /metrics on ln until ctx is done.
func (m *Metrics) ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "metrics").Logger()
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "metrics server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "metrics server shutdown")
		}
		return nil
	}
}
