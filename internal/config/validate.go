package config

import (
	"strings"

	"github.com/mrz1836/autocompose/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error wrapping ErrConfigInvalid describing the first failure.
//
// Validation rules:
//   - treefiles must be non-empty with no blank or duplicate entries
//   - poll-timeout must not be negative
//   - shutdown-grace must not be negative
//   - compose-command and image-builder must be valid shell words
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if len(cfg.Treefiles) == 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "no treefiles specified")
	}
	seen := make(map[string]struct{}, len(cfg.Treefiles))
	for i, tf := range cfg.Treefiles {
		if strings.TrimSpace(tf) == "" {
			return errors.Wrapf(errors.ErrConfigInvalid, "treefiles[%d] is empty", i)
		}
		if _, dup := seen[tf]; dup {
			return errors.Wrapf(errors.ErrConfigInvalid, "treefile %q listed twice", tf)
		}
		seen[tf] = struct{}{}
	}

	if cfg.PollTimeout < 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"poll-timeout must not be negative, got %d", cfg.PollTimeout)
	}

	if cfg.ShutdownGrace < 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"shutdown-grace must not be negative, got %s", cfg.ShutdownGrace)
	}

	if _, err := cfg.ComposeArgv(); err != nil {
		return errors.Wrap(errors.ErrConfigInvalid, err.Error())
	}
	if strings.TrimSpace(cfg.ImageBuilder) != "" {
		if _, err := cfg.ImageBuilderArgv(nil); err != nil {
			return errors.Wrap(errors.ErrConfigInvalid, err.Error())
		}
	}

	return nil
}
