package autobuild

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/publish"
)

// Manifest describes one finished cycle. It is written as manifest.yaml into
// the cycle's version directory and, for published image cycles, into the
// published slot.
type Manifest struct {
	Cycle      string          `yaml:"cycle"`
	Stage      string          `yaml:"stage"`
	Version    int             `yaml:"version"`
	StartedAt  time.Time       `yaml:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at,omitempty"`
	Success    bool            `yaml:"success"`
	Changed    bool            `yaml:"changed,omitempty"`
	Trees      []ManifestEntry `yaml:"trees"`
}

// ManifestEntry is one tree in a manifest.
type ManifestEntry struct {
	Treefile       string `yaml:"treefile"`
	Ref            string `yaml:"ref,omitempty"`
	Name           string `yaml:"name,omitempty"`
	RevisionBefore string `yaml:"revision_before,omitempty"`
	Revision       string `yaml:"revision,omitempty"`
	Success        bool   `yaml:"success"`
	Changed        bool   `yaml:"changed,omitempty"`
	Error          string `yaml:"error,omitempty"`
}

// WriteManifest writes m as manifest.yaml into dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "failed to encode manifest")
	}
	if err := publish.WriteFileAtomic(filepath.Join(dir, constants.ManifestFileName), data); err != nil {
		return errors.Wrapf(err, "failed to write manifest in %s", dir)
	}
	return nil
}

// ReadManifest reads manifest.yaml from dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, constants.ManifestFileName)) //#nosec G304 -- dir is a version slot
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "failed to decode manifest in %s", dir)
	}
	return &m, nil
}
