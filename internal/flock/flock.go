//go:build unix

package flock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/ctxutil"
	acerrors "github.com/mrz1836/autocompose/internal/errors"
)

// Exclusive acquires an exclusive non-blocking lock on the file descriptor.
// Returns an error if the lock cannot be acquired immediately.
func Exclusive(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB)
}

// Unlock releases the lock on the file descriptor.
func Unlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}

// Lock is a held exclusive lock on a lock file.
type Lock struct {
	file *os.File
}

// Acquire takes an exclusive lock on path, retrying until timeout elapses.
// The owning PID is written into the file for operators.
// It returns ErrLockHeld if another holder keeps the lock for the whole
// timeout and ErrLockTimeout if ctx ends the wait.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, acerrors.Wrap(err, "failed to create lock directory")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //#nosec G304 -- path is built from the configured workdir
	if err != nil {
		return nil, acerrors.Wrap(err, "failed to open lock file")
	}

	deadline := time.Now().Add(timeout)
	for {
		err = Exclusive(f.Fd())
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			_ = f.Close()
			return nil, acerrors.Wrap(err, "failed to lock "+path)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, acerrors.Wrapf(acerrors.ErrLockHeld, "%s", path)
		}
		if sleepErr := ctxutil.Sleep(ctx, constants.LockRetryInterval); sleepErr != nil {
			_ = f.Close()
			return nil, acerrors.Wrapf(acerrors.ErrLockTimeout, "%s: %v", path, sleepErr)
		}
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &Lock{file: f}, nil
}

// Release unlocks and closes the lock file. The file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := Unlock(l.file.Fd())
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
