package constants

// Log file names.
const (
	// CLILogFileName is the name of the scheduler's rotating log file,
	// located in <workdir>/logs.
	CLILogFileName = "autocompose.log"

	// ImageLogFileName captures the merged stdout/stderr of one image builder.
	ImageLogFileName = "output.txt"

	// ComposeLogPrefix prefixes the per-treefile compose log inside a compose slot.
	ComposeLogPrefix = "log-"
)

// State file names.
const (
	// ManifestFileName describes the contents of a finished version slot.
	ManifestFileName = "manifest.yaml"

	// HistoryFileName is the SQLite ledger of cycles, stored in TasksDir.
	HistoryFileName = "history.db"

	// LockFileName guards a working directory against a second scheduler.
	LockFileName = ".autocompose.lock"
)

// Log rotation settings for the scheduler log file.
const (
	// LogMaxSizeMB is the size at which the log file is rotated.
	LogMaxSizeMB = 20

	// LogMaxBackups is the number of rotated files kept.
	LogMaxBackups = 5

	// LogMaxAgeDays is the maximum age of a rotated file.
	LogMaxAgeDays = 30

	// LogCompress compresses rotated files.
	LogCompress = true
)

// Image artifact layout produced by create-disks.
const (
	// DiskImageExt is the extension of every produced disk image.
	DiskImageExt = ".qcow2"

	// CloudImageDir holds the cloud-prepared variant.
	CloudImageDir = "cloud"

	// VagrantImageDir holds the vagrant-prepared variant, under a libvirt subdirectory.
	VagrantImageDir = "vagrant/libvirt"
)
