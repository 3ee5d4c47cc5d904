package process

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// pollInterval is how often ProcessManager checks whether signaled
// processes have gone away.
const pollInterval = 50 * time.Millisecond

// ProcessManager handles termination of running processes.
type ProcessManager struct {
	logger zerolog.Logger
}

// NewProcessManager creates a new process manager.
func NewProcessManager(logger zerolog.Logger) *ProcessManager {
	return &ProcessManager{
		logger: logger,
	}
}

// TerminateProcesses sends SIGTERM to every pid, waits up to grace for them
// to exit, and sends SIGKILL to the survivors.
//
// Returns the number of processes that are gone and any SIGKILL errors.
func (pm *ProcessManager) TerminateProcesses(pids []int, grace time.Duration) (terminated int, errs []error) {
	if len(pids) == 0 {
		return 0, nil
	}

	pm.logger.Info().
		Ints("pids", pids).
		Dur("grace", grace).
		Msg("terminating processes")

	alive := make(map[int]bool)
	for _, pid := range pids {
		if pid <= 0 {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			pm.logger.Debug().Err(err).Int("pid", pid).Msg("SIGTERM failed, process already gone")
			terminated++
			continue
		}
		alive[pid] = true
	}

	deadline := time.Now().Add(grace)
	for len(alive) > 0 && time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		for pid := range alive {
			if !pm.IsProcessAlive(pid) {
				delete(alive, pid)
				terminated++
			}
		}
	}

	for pid := range alive {
		pm.logger.Warn().Int("pid", pid).Msg("process did not terminate gracefully, sending SIGKILL")
		proc, err := os.FindProcess(pid)
		if err != nil {
			terminated++
			continue
		}
		if err := proc.Signal(syscall.SIGKILL); err != nil {
			errs = append(errs, fmt.Errorf("failed to kill PID %d: %w", pid, err))
			continue
		}
		terminated++
	}

	pm.logger.Info().
		Int("total_pids", len(pids)).
		Int("terminated", terminated).
		Int("errors", len(errs)).
		Msg("process termination complete")

	return terminated, errs
}

// IsProcessAlive checks if a process with the given PID is currently running.
// A reaped child is not alive; an unreaped zombie still is.
func (pm *ProcessManager) IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
