package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/autocompose/internal/autobuild"
	"github.com/mrz1836/autocompose/internal/clock"
	"github.com/mrz1836/autocompose/internal/config"
	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/flock"
	"github.com/mrz1836/autocompose/internal/history"
	"github.com/mrz1836/autocompose/internal/metrics"
	"github.com/mrz1836/autocompose/internal/process"
	"github.com/mrz1836/autocompose/internal/repo"
	"github.com/mrz1836/autocompose/internal/signal"
)

type runOptions struct {
	disks bool
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(parent *cobra.Command, flags *GlobalFlags) {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:     "run CONFIG",
		Aliases: []string{"trivial-autocompose"},
		Short:   "Run the compose and image scheduler",
		Long: `Run composes every treefile named in CONFIG each poll-timeout seconds, in the
working directory (which must contain an ostree repository at repo/).

A compose cycle that succeeds and changes any ref triggers an image cycle for
the trees listed under "disks". Finished images are published at images/auto.

SIGINT or SIGTERM stops the scheduler; SIGHUP starts a compose cycle now.

Examples:
  autocompose run autobuild.json --workdir /srv/autocompose
  autocompose run autobuild.json --disks   # build images from current revisions first`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), flags, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.disks, "disks", false, "build disk images from the current revisions at startup")
	parent.AddCommand(cmd)
}

func runDaemon(ctx context.Context, flags *GlobalFlags, configPath string, opts *runOptions) error {
	workdir, err := filepath.Abs(flags.Workdir)
	if err != nil {
		return errors.Wrap(err, "failed to resolve workdir")
	}
	if info, statErr := os.Stat(workdir); statErr != nil || !info.IsDir() {
		return errors.Wrapf(errors.ErrInvalidArgument, "workdir %s is not a directory", workdir)
	}

	// The log file belongs to the lock holder, so lock before opening it.
	lock, err := flock.Acquire(ctx, filepath.Join(workdir, constants.LockFileName), constants.LockTimeout)
	if err != nil {
		consoleLogger := GetLogger()
		consoleLogger.Error().Err(err).Str("workdir", workdir).Msg("failed to lock workdir")
		return err
	}
	defer func() { _ = lock.Release() }()

	logger, closer, logErr := InitLoggerWithFile(flags.Verbose, flags.Quiet, workdir)
	defer func() { _ = closer.Close() }()
	setLogger(logger)
	if logErr != nil {
		logger.Warn().Err(logErr).Msg("continuing without log file")
	}
	ctx = logger.WithContext(ctx)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		logger.Error().Err(err).Str("config", configPath).Msg("failed to load configuration")
		return err
	}

	repository, err := repo.Open(filepath.Join(workdir, constants.RepoDir))
	if err != nil {
		logger.Error().Err(err).Msg("failed to open repository")
		return err
	}

	builder, err := cfg.ImageBuilderArgv(defaultImageBuilder())
	if err != nil {
		logger.Error().Err(err).Msg("invalid image builder")
		return err
	}

	var recorder autobuild.Recorder
	if cfg.History {
		store, openErr := history.Open(ctx, filepath.Join(workdir, constants.TasksDir, constants.HistoryFileName))
		if openErr != nil {
			logger.Error().Err(openErr).Msg("failed to open history")
			return openErr
		}
		defer func() { _ = store.Close() }()
		recorder = store
	}

	sig := signal.NewHandler(ctx)
	defer sig.Stop()

	daemon, err := autobuild.NewDaemon(autobuild.Options{
		Config:  cfg,
		Workdir: workdir,
		Disks:   opts.disks,
		Builder: builder,
		Reload:  sig.Reload(),
		Deps: autobuild.Deps{
			Repo:     repository,
			Spawner:  process.ExecSpawner{},
			Clock:    clock.RealClock{},
			Recorder: recorder,
			Metrics:  metrics.New(),
			Logger:   logger,
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to set up scheduler")
		return err
	}

	logger.Info().Str("workdir", workdir).Str("config", configPath).
		Strs("image_builder", builder).
		Msg("autocompose starting")

	if err := daemon.Run(sig.Context()); err != nil {
		return err
	}

	select {
	case <-sig.Interrupted():
		logger.Info().Msg("stopped by signal")
	default:
		logger.Info().Msg("stopped")
	}
	return nil
}

// defaultImageBuilder runs this binary's create-disks command.
func defaultImageBuilder() []string {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return []string{exe, constants.CreateDisksCommand}
}
