package versiondir

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acerrors "github.com/mrz1836/autocompose/internal/errors"
)

func TestOpen_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tasks", "treecompose")

	d, err := Open(root)
	require.NoError(t, err)
	assert.DirExists(t, root)
	assert.Equal(t, root, d.Root())

	_, err = Open("")
	require.ErrorIs(t, err, acerrors.ErrEmptyValue)
}

func TestCurrent_EmptyRoot(t *testing.T) {
	d, err := Open(t.TempDir())
	require.NoError(t, err)

	v, ok, err := d.Current()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestAllocate_SequentialWithoutGaps(t *testing.T) {
	d, err := Open(t.TempDir())
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		v, path, err := d.Allocate()
		require.NoError(t, err)
		assert.Equal(t, i, v)
		assert.Equal(t, filepath.Join(d.Root(), strconv.Itoa(i)), path)
		assert.DirExists(t, path)
	}

	entries, err := os.ReadDir(d.Root())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"0", "1", "2", "3", "4"}, names)
}

func TestCurrent_IgnoresNonVersionEntries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "3"), 0o750))
	require.NoError(t, os.Mkdir(filepath.Join(root, "10"), 0o750))
	require.NoError(t, os.Mkdir(filepath.Join(root, "latest"), 0o750))
	require.NoError(t, os.Mkdir(filepath.Join(root, "7a"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "99"), nil, 0o600))

	d, err := Open(root)
	require.NoError(t, err)

	v, ok, err := d.Current()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, v, "numeric order, not lexical; files are ignored")

	next, _, err := d.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 11, next)
}

func TestAllocate_StepsPastNumericFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "4"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "5"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "6"), nil, 0o600))

	d, err := Open(root)
	require.NoError(t, err)

	v, path, err := d.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.DirExists(t, path)

	v, _, err = d.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 8, v)
}

func TestAllocate_ExistingSlotIsProtocolError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "2"), 0o750))

	d, err := Open(root)
	require.NoError(t, err)

	// a link to a directory is a slot made behind our back
	require.NoError(t, os.Symlink(filepath.Join(root, "2"), filepath.Join(root, "3")))

	_, _, err = d.Allocate()
	require.ErrorIs(t, err, acerrors.ErrProtocol)
}

func TestCurrent_ToleratesExternalDeletion(t *testing.T) {
	d, err := Open(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err := d.Allocate()
		require.NoError(t, err)
	}
	require.NoError(t, os.RemoveAll(d.Path(0)))
	require.NoError(t, os.RemoveAll(d.Path(1)))

	v, ok, err := d.Current()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCurrent_UnreadableRoot(t *testing.T) {
	d, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(d.Root()))

	_, _, err = d.Current()
	require.Error(t, err)
}

func TestPathToVersion(t *testing.T) {
	v, err := PathToVersion("/srv/tasks/images/42")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = PathToVersion("/srv/tasks/images/current")
	require.ErrorIs(t, err, acerrors.ErrInvalidArgument)
}
