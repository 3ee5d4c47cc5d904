package cli

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/logging"
)

var zerologConfigOnce sync.Once //nolint:gochecknoglobals // One-time configuration

// zerologGlobalMu protects writes to the zerolog global logger.
var zerologGlobalMu sync.Mutex //nolint:gochecknoglobals // Protects zerolog global

// configureZerologGlobals sets the field names used in every log entry.
func configureZerologGlobals() {
	zerologConfigOnce.Do(func() {
		zerolog.TimestampFieldName = "ts"
		zerolog.MessageFieldName = "event"
	})
}

// InitLogger creates a console logger at the level the flags select.
//
// Output format is determined by the terminal:
//   - TTY without NO_COLOR: console writer with timestamps
//   - otherwise: JSON to stderr
func InitLogger(verbose, quiet bool) zerolog.Logger {
	return InitLoggerWithWriter(verbose, quiet, selectOutput())
}

// InitLoggerWithWriter creates a logger writing to w.
func InitLoggerWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	configureZerologGlobals()
	logger := zerolog.New(w).
		Level(selectLevel(verbose, quiet)).
		Hook(logging.NewSensitiveDataHook()).
		With().Timestamp().Logger()
	setGlobalLogger(logger)
	return logger
}

// InitLoggerWithFile creates a logger writing to the console and to the
// rotating log file under workdir/logs. The returned closer releases the
// file; it is never nil.
func InitLoggerWithFile(verbose, quiet bool, workdir string) (zerolog.Logger, io.Closer, error) {
	fileWriter, err := createLogFileWriter(workdir)
	if err != nil {
		return InitLogger(verbose, quiet), nopCloser{}, err
	}
	writer := zerolog.MultiLevelWriter(selectOutput(), fileWriter)
	return InitLoggerWithWriter(verbose, quiet, writer), fileWriter, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setGlobalLogger points the zerolog/log package at the CLI logger.
func setGlobalLogger(cliLogger zerolog.Logger) {
	zerologGlobalMu.Lock()
	defer zerologGlobalMu.Unlock()
	log.Logger = cliLogger
}

// selectLevel determines the log level from the flags.
func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// selectOutput picks the console writer for a TTY and JSON otherwise.
func selectOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.DateTime,
		}
	}
	return os.Stderr
}

// filteringWriteCloser redacts credentials before they reach the log file.
type filteringWriteCloser struct {
	filter *logging.FilteringWriter
	closer io.Closer
}

func (fwc *filteringWriteCloser) Write(p []byte) (n int, err error) {
	return fwc.filter.Write(p)
}

func (fwc *filteringWriteCloser) Close() error {
	return fwc.closer.Close()
}

// createLogFileWriter creates the rotating scheduler log file.
func createLogFileWriter(workdir string) (io.WriteCloser, error) {
	logPath := LogFilePath(workdir)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}

	lj := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    constants.LogMaxSizeMB,
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays,
		Compress:   constants.LogCompress,
	}
	return &filteringWriteCloser{
		filter: logging.NewFilteringWriter(lj),
		closer: lj,
	}, nil
}

// LogFilePath returns the scheduler log file for workdir.
func LogFilePath(workdir string) string {
	return filepath.Join(workdir, constants.LogsDir, constants.CLILogFileName)
}
