// Package publish implements an A/B double-buffered publish link.
//
// A link named L always points at L.0 or L.1. Publishing writes the slot the
// link does not point at and then swaps the link with a rename, so readers
// following L never see a partially written tree.
package publish

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mrz1836/autocompose/internal/ctxutil"
	"github.com/mrz1836/autocompose/internal/errors"
)

// Publisher owns one publish link and its two slots.
type Publisher struct {
	link string
}

// New returns a publisher for the link at path. The parent directory is
// created if missing; the link itself is not touched until Publish.
func New(link string) (*Publisher, error) {
	if link == "" {
		return nil, errors.Wrap(errors.ErrEmptyValue, "publish link")
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create publish directory")
	}
	return &Publisher{link: link}, nil
}

// Link returns the link path.
func (p *Publisher) Link() string {
	return p.link
}

// SlotPath returns the directory of slot i (0 or 1).
func (p *Publisher) SlotPath(i int) string {
	return p.link + "." + strconv.Itoa(i)
}

// CurrentSlot returns the slot the link points at. A missing link is slot 0.
// A link whose target ends in anything but 0 or 1 is ErrCorruptState.
func (p *Publisher) CurrentSlot() (int, error) {
	target, err := os.Readlink(p.link)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, errors.Wrapf(errors.ErrCorruptState, "%s: %v", p.link, err)
	}
	if target == "" {
		return 0, errors.Wrapf(errors.ErrCorruptState, "%s has an empty target", p.link)
	}
	switch target[len(target)-1] {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	default:
		return 0, errors.Wrapf(errors.ErrCorruptState, "%s -> %s", p.link, target)
	}
}

// Publish materializes the next slot with build and then points the link at
// it. The stale slot is removed first. If build fails the link is left as it
// was and the error is returned. It returns the slot index now published.
func (p *Publisher) Publish(ctx context.Context, build func(dir string) error) (int, error) {
	current, err := p.CurrentSlot()
	if err != nil {
		return 0, err
	}
	next := 1 - current
	dir := p.SlotPath(next)

	if err := ctxutil.Canceled(ctx); err != nil {
		return 0, err
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, errors.Wrapf(err, "failed to remove stale slot %s", dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, errors.Wrapf(err, "failed to create slot %s", dir)
	}

	if err := build(dir); err != nil {
		return 0, errors.Wrapf(err, "failed to build slot %s", dir)
	}
	if err := ctxutil.Canceled(ctx); err != nil {
		return 0, err
	}

	if err := p.swap(dir); err != nil {
		return 0, err
	}
	return next, nil
}

// swap points the link at target via a temporary link and rename.
func (p *Publisher) swap(target string) error {
	parent := filepath.Dir(p.link)
	tmp := p.link + "-new.tmp"

	if err := os.RemoveAll(tmp); err != nil {
		return errors.Wrap(err, "failed to remove leftover temporary link")
	}
	rel, err := filepath.Rel(parent, target)
	if err != nil {
		return errors.Wrap(err, "failed to compute link target")
	}
	if err := os.Symlink(rel, tmp); err != nil {
		return errors.Wrap(err, "failed to create temporary link")
	}
	if err := os.Rename(tmp, p.link); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to swap publish link")
	}
	return syncDir(parent)
}

func syncDir(dir string) error {
	d, err := os.Open(dir) //#nosec G304 -- dir is the publish link's parent
	if err != nil {
		return errors.Wrap(err, "failed to open directory for sync")
	}
	defer func() { _ = d.Close() }()
	if err := d.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync directory")
	}
	return nil
}
