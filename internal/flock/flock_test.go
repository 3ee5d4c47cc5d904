//go:build unix

package flock_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acerrors "github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/flock"
)

func TestExclusiveLock(t *testing.T) {
	t.Parallel()

	t.Run("acquires lock on new file", func(t *testing.T) {
		t.Parallel()
		lockFile := filepath.Join(t.TempDir(), "test.lock")

		f, err := os.OpenFile(lockFile, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- test temp dir
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		require.NoError(t, flock.Exclusive(f.Fd()))
		require.NoError(t, flock.Unlock(f.Fd()))
	})

	t.Run("fails when already held", func(t *testing.T) {
		t.Parallel()
		lockFile := filepath.Join(t.TempDir(), "test.lock")

		f1, err := os.OpenFile(lockFile, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- test temp dir
		require.NoError(t, err)
		defer func() { _ = f1.Close() }()
		require.NoError(t, flock.Exclusive(f1.Fd()))

		f2, err := os.OpenFile(lockFile, os.O_RDWR, 0o600) // #nosec G304 -- test temp dir
		require.NoError(t, err)
		defer func() { _ = f2.Close() }()

		assert.Error(t, flock.Exclusive(f2.Fd()))

		require.NoError(t, flock.Unlock(f1.Fd()))
		assert.NoError(t, flock.Exclusive(f2.Fd()))
	})
}

func TestAcquire(t *testing.T) {
	t.Parallel()

	t.Run("writes pid and releases", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", ".autocompose.lock")

		lock, err := flock.Acquire(context.Background(), path, 100*time.Millisecond)
		require.NoError(t, err)

		data, err := os.ReadFile(path) // #nosec G304 -- test temp dir
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

		require.NoError(t, lock.Release())
		require.NoError(t, lock.Release(), "second release is a no-op")
	})

	t.Run("second holder times out", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".autocompose.lock")

		first, err := flock.Acquire(context.Background(), path, 100*time.Millisecond)
		require.NoError(t, err)
		defer func() { _ = first.Release() }()

		_, err = flock.Acquire(context.Background(), path, 100*time.Millisecond)
		require.ErrorIs(t, err, acerrors.ErrLockHeld)
	})

	t.Run("canceled context stops waiting", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".autocompose.lock")

		first, err := flock.Acquire(context.Background(), path, 100*time.Millisecond)
		require.NoError(t, err)
		defer func() { _ = first.Release() }()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = flock.Acquire(ctx, path, time.Hour)
		require.ErrorIs(t, err, acerrors.ErrLockTimeout)
	})

	t.Run("reacquire after release", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".autocompose.lock")

		first, err := flock.Acquire(context.Background(), path, 100*time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, first.Release())

		second, err := flock.Acquire(context.Background(), path, 100*time.Millisecond)
		require.NoError(t, err)
		assert.NoError(t, second.Release())
	})
}
