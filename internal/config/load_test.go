package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/autocompose/internal/constants"
	acerrors "github.com/mrz1836/autocompose/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "autocompose.json", `{"treefiles": ["a.json", "b.json"]}`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.json", "b.json"}, cfg.Treefiles)
	assert.Equal(t, constants.DefaultPollTimeoutSeconds, cfg.PollTimeout)
	assert.Equal(t, time.Hour, cfg.PollInterval())
	assert.Equal(t, constants.DefaultComposeCommand, cfg.ComposeCommand)
	assert.Equal(t, constants.DefaultShutdownGrace, cfg.ShutdownGrace)
	assert.True(t, cfg.History)
	assert.Empty(t, cfg.MetricsListen)
	assert.NotNil(t, cfg.Disks)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.Dir)
}

func TestLoad_ReadsAllKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "autocompose.json", `{
		"treefiles": ["fedora-atomic-docker-host.json"],
		"poll-timeout": 10,
		"disks": {"fedora-atomic-docker-host": true, "Workstation.f23": 1},
		"compose-command": "rpm-ostree compose tree --touch-if-changed=/tmp/x",
		"image-builder": "/usr/libexec/build-disk --verbose",
		"shutdown-grace": "3s",
		"metrics-listen": "127.0.0.1:9100",
		"history": false
	}`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.PollTimeout)
	assert.Equal(t, 10*time.Second, cfg.PollInterval())
	assert.True(t, cfg.DisksEnabled("fedora-atomic-docker-host"))
	assert.True(t, cfg.DisksEnabled("Workstation.f23"))
	assert.False(t, cfg.DisksEnabled("other"))
	assert.Equal(t, 3*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsListen)
	assert.False(t, cfg.History)

	argv, err := cfg.ComposeArgv()
	require.NoError(t, err)
	assert.Equal(t, []string{"rpm-ostree", "compose", "tree", "--touch-if-changed=/tmp/x"}, argv)

	builder, err := cfg.ImageBuilderArgv([]string{"unused"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/libexec/build-disk", "--verbose"}, builder)
}

func TestLoad_ZeroPollTimeoutUsesDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "autocompose.json", `{"treefiles": ["a.json"], "poll-timeout": 0}`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultPollTimeoutSeconds, cfg.PollTimeout)
	assert.Equal(t, time.Hour, cfg.PollInterval())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "autocompose.json", `{"treefiles": ["a.json"], "poll-timeout": 10}`)
	t.Setenv("AUTOCOMPOSE_POLL_TIMEOUT", "30")
	t.Setenv("AUTOCOMPOSE_SHUTDOWN_GRACE", "1m")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.PollTimeout)
	assert.Equal(t, time.Minute, cfg.ShutdownGrace)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "malformed json", content: `{"treefiles": [`, wantErr: acerrors.ErrConfigInvalid},
		{name: "missing treefiles", content: `{"poll-timeout": 5}`, wantErr: acerrors.ErrConfigInvalid},
		{name: "empty treefiles", content: `{"treefiles": []}`, wantErr: acerrors.ErrConfigInvalid},
		{name: "negative poll timeout", content: `{"treefiles": ["a.json"], "poll-timeout": -5}`, wantErr: acerrors.ErrConfigInvalid},
		{name: "unbalanced quote", content: `{"treefiles": ["a.json"], "image-builder": "build 'disk"}`, wantErr: acerrors.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".json", tt.content)
			_, err := Load(context.Background(), path)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, acerrors.ErrConfigNotFound)

	_, err = Load(context.Background(), "")
	require.ErrorIs(t, err, acerrors.ErrEmptyValue)
}

func TestLoadTreefile(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads ref", func(t *testing.T) {
		path := writeFile(t, dir, "host.json", `{"ref": "fedora-atomic/f23/x86_64/docker-host", "packages": ["docker"]}`)
		tf, err := LoadTreefile(path)
		require.NoError(t, err)
		assert.Equal(t, "fedora-atomic/f23/x86_64/docker-host", tf.Ref)
	})

	t.Run("missing ref", func(t *testing.T) {
		path := writeFile(t, dir, "noref.json", `{"packages": []}`)
		_, err := LoadTreefile(path)
		require.ErrorIs(t, err, acerrors.ErrTreefileInvalid)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTreefile(filepath.Join(dir, "absent.json"))
		require.ErrorIs(t, err, acerrors.ErrTreefileInvalid)
	})
}
