package config

import (
	"strings"

	"github.com/mrz1836/autocompose/internal/errors"
)

// Treefile is the part of an rpm-ostree treefile the scheduler consults.
type Treefile struct {
	Ref string `mapstructure:"ref"`
}

// LoadTreefile reads the treefile at path. Only ref is required.
func LoadTreefile(path string) (*Treefile, error) {
	v := newViperInstance()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(errors.ErrTreefileInvalid, "%s: %v", path, err)
	}

	var tf Treefile
	if err := v.Unmarshal(&tf); err != nil {
		return nil, errors.Wrapf(errors.ErrTreefileInvalid, "%s: %v", path, err)
	}
	if strings.TrimSpace(tf.Ref) == "" {
		return nil, errors.Wrapf(errors.ErrTreefileInvalid, "%s: missing ref", path)
	}
	return &tf, nil
}
