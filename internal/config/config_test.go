package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acerrors "github.com/mrz1836/autocompose/internal/errors"
)

func TestDisksEnabled_Truthiness(t *testing.T) {
	cfg := &Config{Disks: map[string]any{
		"yes":    true,
		"no":     false,
		"one":    float64(1),
		"zero":   float64(0),
		"string": "qcow2",
		"empty":  "",
		"object": map[string]any{"cloud": true},
		"null":   nil,
	}}

	assert.True(t, cfg.DisksEnabled("yes"))
	assert.False(t, cfg.DisksEnabled("no"))
	assert.True(t, cfg.DisksEnabled("one"))
	assert.False(t, cfg.DisksEnabled("zero"))
	assert.True(t, cfg.DisksEnabled("string"))
	assert.False(t, cfg.DisksEnabled("empty"))
	assert.True(t, cfg.DisksEnabled("object"))
	assert.False(t, cfg.DisksEnabled("null"))
	assert.False(t, cfg.DisksEnabled("absent"))
	assert.True(t, cfg.DisksEnabled("YES"), "keys match case-insensitively")
}

func TestImageBuilderArgv_Fallback(t *testing.T) {
	cfg := DefaultConfig()

	argv, err := cfg.ImageBuilderArgv([]string{"/usr/bin/autocompose", "create-disks"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/autocompose", "create-disks"}, argv)

	_, err = cfg.ImageBuilderArgv(nil)
	require.ErrorIs(t, err, acerrors.ErrCommandNotConfigured)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Treefiles = []string{"a.json"}
		return cfg
	}

	require.NoError(t, Validate(valid()))
	require.ErrorIs(t, Validate(nil), acerrors.ErrConfigNil)

	cfg := valid()
	cfg.Treefiles = []string{"a.json", "a.json"}
	require.ErrorIs(t, Validate(cfg), acerrors.ErrConfigInvalid)

	cfg = valid()
	cfg.Treefiles = []string{" "}
	require.ErrorIs(t, Validate(cfg), acerrors.ErrConfigInvalid)

	cfg = valid()
	cfg.ShutdownGrace = -1
	require.ErrorIs(t, Validate(cfg), acerrors.ErrConfigInvalid)

	cfg = valid()
	cfg.ComposeCommand = "   "
	err := Validate(cfg)
	require.ErrorIs(t, err, acerrors.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "compose-command")
}

func TestPollInterval_UnsetUsesDefault(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, time.Hour, cfg.PollInterval())

	cfg.PollTimeout = 10
	assert.Equal(t, 10*time.Second, cfg.PollInterval())

	cfg = DefaultConfig()
	cfg.Treefiles = []string{"a.json"}
	cfg.PollTimeout = 0
	require.NoError(t, Validate(cfg))
	cfg.PollTimeout = -1
	require.ErrorIs(t, Validate(cfg), acerrors.ErrConfigInvalid)
}
