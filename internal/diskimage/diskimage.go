// Package diskimage produces the VM, cloud and vagrant disks for one tree
// revision. It is the default image builder the scheduler launches.
package diskimage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/process"
)

// Request names the revision to turn into disks and where to put them.
type Request struct {
	RepoPath string
	TaskDir  string
	OSName   string
	Ref      string
	Revision string
	Name     string
}

// Builder runs the disk tools.
type Builder struct {
	runner  process.Runner
	toolbox string
	xz      string
	logger  zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithRunner sets the command runner.
func WithRunner(r process.Runner) Option {
	return func(b *Builder) { b.runner = r }
}

// WithToolbox sets the disk toolbox binary.
func WithToolbox(bin string) Option {
	return func(b *Builder) { b.toolbox = bin }
}

// New creates a Builder logging to logger.
func New(logger zerolog.Logger, opts ...Option) *Builder {
	b := &Builder{
		runner:  &process.DefaultRunner{},
		toolbox: constants.DefaultToolboxBinary,
		xz:      "xz",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DiskName is the file stem for name: slashes become underscores.
func DiskName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

// Paths are the disks produced for one request.
type Paths struct {
	Base    string
	Cloud   string
	Vagrant string
}

// PathsFor returns where the disks for req live.
func PathsFor(req Request) Paths {
	dir := filepath.Join(req.TaskDir, constants.ImageResultDir)
	file := DiskName(req.Name) + constants.DiskImageExt
	return Paths{
		Base:    filepath.Join(dir, file),
		Cloud:   filepath.Join(dir, constants.CloudImageDir, file),
		Vagrant: filepath.Join(dir, constants.VagrantImageDir, file),
	}
}

// Build creates the base disk, derives the cloud and vagrant variants and
// compresses all three. If the vagrant disk already exists nothing is done.
func (b *Builder) Build(ctx context.Context, req Request) error {
	if err := validate(req); err != nil {
		return err
	}
	paths := PathsFor(req)
	logger := b.logger.With().Str("ref", req.Ref).Str("name", req.Name).Str("revision", req.Revision).Logger()
	logger.Info().Msg("checking disk state")

	if _, err := os.Stat(paths.Vagrant); err == nil {
		logger.Info().Str("path", paths.Vagrant).Msg("already have disk")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(paths.Base), 0o750); err != nil {
		return errors.Wrap(err, "failed to create images directory")
	}
	if err := b.run(ctx, logger, b.toolbox, "create-vm-disk", req.RepoPath, req.OSName, req.Ref, paths.Base); err != nil {
		return err
	}

	if err := b.variant(ctx, logger, paths.Base, paths.Cloud, "prep-cloud-disk"); err != nil {
		return err
	}
	if err := b.variant(ctx, logger, paths.Base, paths.Vagrant, "prep-vagrant-disk"); err != nil {
		return err
	}

	if err := b.run(ctx, logger, b.xz, paths.Base); err != nil {
		return err
	}
	logger.Info().Msg("disks complete")
	return nil
}

// variant copies base to target, prepares it with the toolbox subcommand,
// and compresses it.
func (b *Builder) variant(ctx context.Context, logger zerolog.Logger, base, target, prep string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(target))
	}
	if err := copyFile(base, target); err != nil {
		return err
	}
	if err := b.run(ctx, logger, b.toolbox, prep, target); err != nil {
		return err
	}
	return b.run(ctx, logger, b.xz, target)
}

func (b *Builder) run(ctx context.Context, logger zerolog.Logger, argv ...string) error {
	quoted := process.QuoteArgv(argv)
	logger.Info().Str("argv", quoted).Msg("running")
	_, stderr, code, err := b.runner.Run(ctx, "", argv...)
	if err != nil {
		logger.Error().Err(err).Int("exit_code", code).Str("stderr", strings.TrimSpace(stderr)).Msg("command failed")
		return errors.Wrapf(errors.ErrSubprocessFailed, "%s exited %d: %v", quoted, code, err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src) //#nosec G304 -- src is the freshly built base disk
	if err != nil {
		return errors.Wrap(err, "failed to open base disk")
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) //#nosec G304 -- dst is under the task directory
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "failed to copy disk to %s", dst)
	}
	return nil
}

func validate(req Request) error {
	for field, v := range map[string]string{
		"repo": req.RepoPath, "taskdir": req.TaskDir, "osname": req.OSName,
		"ref": req.Ref, "rev": req.Revision, "name": req.Name,
	} {
		if strings.TrimSpace(v) == "" {
			return errors.Wrapf(errors.ErrInvalidArgument, "%s must not be empty", field)
		}
	}
	return nil
}
