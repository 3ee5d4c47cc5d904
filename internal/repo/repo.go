// Package repo resolves refs in the ostree repository the composer writes.
//
// The scheduler only ever reads the repository. Resolution runs while
// compose subprocesses are writing to it; the last resolved value wins.
package repo

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/process"
)

// Resolver maps a ref to its current revision.
type Resolver interface {
	ResolveRevision(ctx context.Context, ref string) (rev string, found bool, err error)
}

// Repository is an ostree repository on disk.
type Repository struct {
	path   string
	binary string
	runner process.Runner
}

// Option configures a Repository.
type Option func(*Repository)

// WithRunner replaces the command runner used for ostree queries.
func WithRunner(r process.Runner) Option {
	return func(repo *Repository) { repo.runner = r }
}

// WithBinary replaces the ostree binary.
func WithBinary(binary string) Option {
	return func(repo *Repository) { repo.binary = binary }
}

// Open returns the repository at path. The path must hold an ostree
// repository (a config file at its top level).
func Open(path string, opts ...Option) (*Repository, error) {
	info, err := os.Stat(filepath.Join(path, "config"))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(errors.ErrRepository, "%s is not an ostree repository", path)
		}
		return nil, errors.Wrapf(errors.ErrRepository, "%s: %v", path, err)
	}
	if info.IsDir() {
		return nil, errors.Wrapf(errors.ErrRepository, "%s/config is a directory", path)
	}

	r := &Repository{
		path:   path,
		binary: constants.DefaultOSTreeBinary,
		runner: &process.DefaultRunner{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// ResolveRevision returns the commit ref points at. A ref that does not exist
// yet is found=false with no error; any other failure is ErrRepository.
func (r *Repository) ResolveRevision(ctx context.Context, ref string) (string, bool, error) {
	if ref == "" {
		return "", false, errors.Wrap(errors.ErrEmptyValue, "ref")
	}

	stdout, stderr, _, err := r.runner.Run(ctx, "", r.binary, "rev-parse", "--repo="+r.path, ref)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		if isNotFound(stderr) {
			return "", false, nil
		}
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		return "", false, errors.Wrapf(errors.ErrRepository, "rev-parse %s: %s", ref, msg)
	}

	rev := strings.TrimSpace(stdout)
	if rev == "" {
		return "", false, errors.Wrapf(errors.ErrRepository, "rev-parse %s returned nothing", ref)
	}
	return rev, true, nil
}

// isNotFound matches ostree's messages for a missing refspec.
func isNotFound(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "not found")
}

var _ Resolver = (*Repository)(nil)
