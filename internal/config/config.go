// Package config loads the autobuilder configuration and the treefiles it names.
//
// The configuration is a single JSON document. Environment variables with the
// AUTOCOMPOSE_ prefix override individual keys (poll-timeout becomes
// AUTOCOMPOSE_POLL_TIMEOUT).
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import other internal packages.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
)

// Config is the autobuilder configuration.
type Config struct {
	// Treefiles lists the tree definition files, in build order. Relative
	// paths are resolved against Dir.
	Treefiles []string `json:"treefiles" mapstructure:"treefiles"`

	// PollTimeout is the compose poll interval in seconds.
	PollTimeout int `json:"poll-timeout" mapstructure:"poll-timeout"`

	// Disks maps a treefile basename (without .json) to a flag enabling
	// image builds for it. Any JSON truthy value enables the build.
	Disks map[string]any `json:"disks" mapstructure:"disks"`

	// ComposeCommand is the composer, shell-quoted. The scheduler appends
	// --repo, --cachedir and the treefile path.
	ComposeCommand string `json:"compose-command" mapstructure:"compose-command"`

	// ImageBuilder is the image builder, shell-quoted. Empty means this
	// binary's create-disks subcommand.
	ImageBuilder string `json:"image-builder" mapstructure:"image-builder"`

	// ShutdownGrace is the time between SIGTERM and SIGKILL for outstanding
	// subprocesses when the scheduler stops.
	ShutdownGrace time.Duration `json:"shutdown-grace" mapstructure:"shutdown-grace"`

	// MetricsListen is the address the Prometheus handler listens on.
	// Empty disables it.
	MetricsListen string `json:"metrics-listen" mapstructure:"metrics-listen"`

	// History enables the SQLite cycle ledger.
	History bool `json:"history" mapstructure:"history"`

	// Dir is the directory holding the configuration file.
	Dir string `json:"-" mapstructure:"-"`
}

// PollInterval returns PollTimeout as a duration. An unset timeout yields
// the default interval.
func (c *Config) PollInterval() time.Duration {
	if c.PollTimeout <= 0 {
		return constants.DefaultPollTimeoutSeconds * time.Second
	}
	return time.Duration(c.PollTimeout) * time.Second
}

// DisksEnabled reports whether image builds are enabled for basename.
// Keys are matched case-insensitively.
func (c *Config) DisksEnabled(basename string) bool {
	for k, v := range c.Disks {
		if strings.EqualFold(k, basename) {
			return truthy(v)
		}
	}
	return false
}

// ComposeArgv splits ComposeCommand into an argv prefix.
func (c *Config) ComposeArgv() ([]string, error) {
	return splitCommand("compose-command", c.ComposeCommand)
}

// ImageBuilderArgv splits ImageBuilder into an argv prefix. When it is unset,
// fallback is returned instead.
func (c *Config) ImageBuilderArgv(fallback []string) ([]string, error) {
	if strings.TrimSpace(c.ImageBuilder) == "" {
		if len(fallback) == 0 {
			return nil, errors.ErrCommandNotConfigured
		}
		return fallback, nil
	}
	return splitCommand("image-builder", c.ImageBuilder)
}

func splitCommand(key, command string) ([]string, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "%s: %v", key, err)
	}
	if len(argv) == 0 {
		return nil, errors.Wrapf(errors.ErrCommandNotConfigured, "%s is empty", key)
	}
	return argv, nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	default:
		return fmt.Sprint(val) != ""
	}
}
