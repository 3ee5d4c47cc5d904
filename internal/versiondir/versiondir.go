// Package versiondir manages a directory of monotonically numbered version
// slots (root/0, root/1, ...). Each compose or image cycle takes a fresh slot.
package versiondir

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/mrz1836/autocompose/internal/errors"
)

var versionName = regexp.MustCompile(`^[0-9]+$`) //nolint:gochecknoglobals // compiled once

// Dir is a versioned directory rooted at a filesystem path.
// It holds no cached state; every query rescans the root, so external
// deletions of old slots are tolerated. Allocation assumes one writer.
type Dir struct {
	root string
}

// Open returns the versioned directory at root, creating root if needed.
func Open(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.Wrap(errors.ErrEmptyValue, "version root")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrapf(err, "failed to create version root %s", root)
	}
	return &Dir{root: root}, nil
}

// Root returns the root path.
func (d *Dir) Root() string {
	return d.root
}

// Current returns the highest existing version. ok is false when the root
// holds no version directories. Non-numeric names and plain files are ignored.
func (d *Dir) Current() (version int, ok bool, err error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to read version root %s", d.root)
	}

	version = -1
	for _, e := range entries {
		if !e.IsDir() || !versionName.MatchString(e.Name()) {
			continue
		}
		n, convErr := strconv.Atoi(e.Name())
		if convErr != nil {
			// overflow; not a slot we could have made
			continue
		}
		if n > version {
			version = n
		}
	}
	if version < 0 {
		return 0, false, nil
	}
	return version, true, nil
}

// Allocate creates the next version directory and returns its number and path.
// The first allocation in an empty root is 0. Numbers taken by plain files
// are skipped.
func (d *Dir) Allocate() (int, string, error) {
	current, ok, err := d.Current()
	if err != nil {
		return 0, "", err
	}
	next := 0
	if ok {
		next = current + 1
	}

	for {
		path := d.Path(next)
		err := os.Mkdir(path, 0o750)
		if err == nil {
			return next, path, nil
		}
		if !stderrors.Is(err, os.ErrExist) {
			return 0, "", errors.Wrapf(err, "failed to create version %d", next)
		}
		// a stray file may hold the name; another slot directory may not
		if info, statErr := os.Stat(path); statErr != nil || info.IsDir() {
			return 0, "", errors.Wrapf(errors.ErrProtocol, "version %d already exists under %s", next, d.root)
		}
		next++
	}
}

// Path returns the directory of version v.
func (d *Dir) Path(v int) string {
	return filepath.Join(d.root, strconv.Itoa(v))
}

// PathToVersion parses the version out of a slot path.
func PathToVersion(path string) (int, error) {
	base := filepath.Base(path)
	if !versionName.MatchString(base) {
		return 0, errors.Wrapf(errors.ErrInvalidArgument, "%s is not a version directory", path)
	}
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidArgument, "%s: %v", path, err)
	}
	return n, nil
}
