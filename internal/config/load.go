package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "AUTOCOMPOSE"

// newViperInstance creates a viper instance for one JSON document.
// Treefile basenames may contain dots, so "::" is used as the key delimiter.
func newViperInstance() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigType("json")
	return v
}

// Load reads the configuration file at path. Precedence, highest first:
// environment variables (AUTOCOMPOSE_*), the file, built-in defaults.
// A poll-timeout of 0 means the default.
func Load(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrEmptyValue, "config path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve config path")
	}
	if _, err := os.Stat(abs); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(errors.ErrConfigNotFound, "%s", path)
		}
		return nil, errors.Wrap(err, "failed to stat config file")
	}

	v := newViperInstance()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", "::", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(abs)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "failed to read %s: %v", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "failed to unmarshal config: %v", err)
	}
	cfg.Dir = filepath.Dir(abs)
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = constants.DefaultPollTimeoutSeconds
	}
	if cfg.Disks == nil {
		cfg.Disks = map[string]any{}
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("path", abs).
		Int("treefiles", len(cfg.Treefiles)).
		Int("poll_timeout", cfg.PollTimeout).
		Dur("shutdown_grace", cfg.ShutdownGrace).
		Msg("configuration loaded")

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// viperDecoderOption returns the decoder options for viper unmarshal.
// Environment overrides arrive as strings, so durations and
// comma-separated lists are converted.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}
