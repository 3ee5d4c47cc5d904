package autobuild

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/autocompose/internal/config"
	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/metrics"
	"github.com/mrz1836/autocompose/internal/process"
	"github.com/mrz1836/autocompose/internal/publish"
	"github.com/mrz1836/autocompose/internal/versiondir"
)

// Options configure a Daemon.
type Options struct {
	Config  *config.Config
	Workdir string
	// Disks requests an image cycle at startup from the repository's
	// current revisions.
	Disks bool
	// Builder is the image builder argv prefix.
	Builder []string
	// Deps carries the collaborators. Poster, Workdir and NextPoll are
	// filled in by NewDaemon.
	Deps Deps
	// Reload fires an immediate poll, typically on SIGHUP.
	Reload <-chan struct{}
}

// Daemon runs the scheduling loop, both schedulers and the metrics server.
type Daemon struct {
	opts    Options
	loop    *Loop
	compose *ComposeScheduler
	images  *ImageBuildScheduler
	pm      *process.ProcessManager
	logger  zerolog.Logger
}

// NewDaemon lays out the working directory and builds the schedulers.
func NewDaemon(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.ErrConfigNil
	}

	deps := opts.Deps
	deps.Workdir = opts.Workdir
	if deps.RepoPath == "" {
		deps.RepoPath = filepath.Join(opts.Workdir, constants.RepoDir)
	}

	loop := NewLoop(deps.clock())
	deps.Poster = loop
	deps.NextPoll = loop.NextTick

	composeVersions, err := versiondir.Open(filepath.Join(opts.Workdir, constants.TasksDir, constants.ComposeTaskDir))
	if err != nil {
		return nil, err
	}
	imageVersions, err := versiondir.Open(filepath.Join(opts.Workdir, constants.TasksDir, constants.ImagesTaskDir))
	if err != nil {
		return nil, err
	}
	publisher, err := publish.New(filepath.Join(opts.Workdir, constants.ImagesDir, constants.ImagesLinkName))
	if err != nil {
		return nil, err
	}
	// Refuse to start on a link we would not be able to swap.
	if _, err := publisher.CurrentSlot(); err != nil {
		return nil, err
	}

	d := &Daemon{
		opts:   opts,
		loop:   loop,
		pm:     process.NewProcessManager(deps.Logger.With().Str("component", "shutdown").Logger()),
		logger: deps.Logger.With().Str("component", "daemon").Logger(),
	}
	shared := &deps
	d.images = NewImageBuildScheduler(cfg.Treefiles, opts.Builder, imageVersions, publisher, shared)
	d.compose, err = NewComposeScheduler(cfg, composeVersions, d.images, shared)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Compose returns the compose scheduler.
func (d *Daemon) Compose() *ComposeScheduler { return d.compose }

// Images returns the image scheduler.
func (d *Daemon) Images() *ImageBuildScheduler { return d.images }

// Run schedules cycles until ctx is done or a fatal error occurs. On return,
// outstanding subprocesses have been terminated.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.opts.Config
	d.logger.Info().
		Int("treefiles", len(cfg.Treefiles)).
		Dur("poll_interval", cfg.PollInterval()).
		Bool("disks", d.opts.Disks).
		Msg("starting scheduler")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := d.loop.Run(gctx, cfg.PollInterval(), d.startup(gctx), func() error {
			return d.compose.Poll(gctx)
		}, d.opts.Reload)
		d.shutdown(cfg.ShutdownGrace)
		if err != nil {
			d.logger.Error().Err(err).Msg("scheduler stopped on fatal error")
		}
		return err
	})

	if cfg.MetricsListen != "" && d.opts.Deps.Metrics != nil {
		g.Go(func() error {
			return d.opts.Deps.Metrics.Serve(gctx, cfg.MetricsListen)
		})
	}

	return g.Wait()
}

func (d *Daemon) startup(ctx context.Context) Event {
	return func() error {
		if d.opts.Disks {
			d.logger.Info().Msg("building disk images from current revisions")
			if err := d.images.RequestFresh(ctx, LoadDefinitions(d.opts.Config)); err != nil {
				return err
			}
		}
		return d.compose.Poll(ctx)
	}
}

// shutdown stops every outstanding build subprocess.
func (d *Daemon) shutdown(grace time.Duration) {
	running := append(d.compose.RunningPIDs(), d.images.RunningPIDs()...)
	if len(running) == 0 {
		return
	}
	_, errs := d.pm.TerminateProcesses(running, grace)
	for _, err := range errs {
		d.logger.Warn().Err(err).Msg("failed to stop subprocess")
	}
}

// Metrics returns the daemon's metrics, if any.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.opts.Deps.Metrics
}
