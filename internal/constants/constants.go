// Package constants provides centralized constant values used throughout autocompose.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names used under the scheduler's working directory.
const (
	// RepoDir is the ostree repository the composer writes into.
	RepoDir = "repo"

	// CacheDir is the rpm-ostree package cache shared by all compose runs.
	CacheDir = "cache"

	// TasksDir holds one versioned directory tree per scheduled stage.
	TasksDir = "tasks"

	// ComposeTaskDir is the stage directory for compose cycles, relative to TasksDir.
	ComposeTaskDir = "treecompose"

	// ImagesTaskDir is the stage directory for image-build cycles, relative to TasksDir.
	ImagesTaskDir = "images"

	// ImagesDir holds the published image slots and the publish link.
	ImagesDir = "images"

	// ImagesLinkName is the publish link inside ImagesDir; it points at
	// ImagesLinkName+".0" or ImagesLinkName+".1".
	ImagesLinkName = "auto"

	// LogsDir is the directory name where the scheduler's own log files are stored.
	LogsDir = "logs"

	// ImageResultDir is the directory an image builder leaves its artifacts in,
	// relative to its working directory.
	ImageResultDir = "images"
)

// Poll and shutdown defaults.
const (
	// DefaultPollTimeoutSeconds is the compose poll interval used when the
	// configuration does not set poll-timeout.
	DefaultPollTimeoutSeconds = 60 * 60

	// DefaultShutdownGrace is how long outstanding subprocesses get between
	// SIGTERM and SIGKILL when the scheduler shuts down.
	DefaultShutdownGrace = 10 * time.Second

	// LockRetryInterval is the interval between workdir lock attempts.
	LockRetryInterval = 50 * time.Millisecond

	// LockTimeout is the maximum time spent trying to take the workdir lock.
	LockTimeout = 2 * time.Second
)

// Default commands.
const (
	// DefaultComposeCommand is the composer invoked for each treefile.
	DefaultComposeCommand = "rpm-ostree compose tree"

	// DefaultOSTreeBinary resolves revisions in the repository.
	DefaultOSTreeBinary = "ostree"

	// DefaultToolboxBinary performs the disk mutations used by create-disks.
	DefaultToolboxBinary = "rpm-ostree-toolbox"

	// CreateDisksCommand is the subcommand the default image builder runs.
	CreateDisksCommand = "create-disks"
)

// Retention.
const (
	// DefaultStatusLimit is the number of cycles the status command shows.
	DefaultStatusLimit = 10
)
