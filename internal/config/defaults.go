package config

import (
	"github.com/spf13/viper"

	"github.com/mrz1836/autocompose/internal/constants"
)

// DefaultConfig returns a Config holding every default. Treefiles is empty,
// so it does not validate on its own.
func DefaultConfig() *Config {
	return &Config{
		PollTimeout:    constants.DefaultPollTimeoutSeconds,
		Disks:          map[string]any{},
		ComposeCommand: constants.DefaultComposeCommand,
		ShutdownGrace:  constants.DefaultShutdownGrace,
		History:        true,
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("poll-timeout", d.PollTimeout)
	v.SetDefault("compose-command", d.ComposeCommand)
	v.SetDefault("image-builder", "")
	v.SetDefault("shutdown-grace", d.ShutdownGrace.String())
	v.SetDefault("metrics-listen", "")
	v.SetDefault("history", d.History)
}
