package autobuild

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/autocompose/internal/clock"
	"github.com/mrz1836/autocompose/internal/history"
	"github.com/mrz1836/autocompose/internal/metrics"
	"github.com/mrz1836/autocompose/internal/process"
	"github.com/mrz1836/autocompose/internal/repo"
	"github.com/mrz1836/autocompose/internal/taskset"
)

// Recorder stores finished cycles. history.Store implements it.
type Recorder interface {
	RecordCycle(ctx context.Context, c history.Cycle) error
}

// Deps are the collaborators shared by both schedulers.
type Deps struct {
	// Workdir is the scheduler's working directory.
	Workdir string
	// Repo resolves refs in Workdir/repo.
	Repo repo.Resolver
	// RepoPath is the repository path handed to subprocesses.
	RepoPath string
	// Spawner launches subprocesses.
	Spawner process.Spawner
	// Poster delivers exit events to the loop.
	Poster Poster
	// Clock provides timestamps.
	Clock clock.Clock
	// Recorder stores finished cycles. Optional.
	Recorder Recorder
	// Metrics records activity. Optional.
	Metrics *metrics.Metrics
	// NextPoll reports when the poll timer fires next. Optional.
	NextPoll func() time.Time
	// Logger is the base logger.
	Logger zerolog.Logger
}

func newCycleID() string {
	return "cycle-" + uuid.NewString()[:8]
}

func (d *Deps) clock() clock.Clock {
	if d.Clock == nil {
		return clock.RealClock{}
	}
	return d.Clock
}

func (d *Deps) now() time.Time {
	return d.clock().Now()
}

func (d *Deps) nextPoll() time.Time {
	if d.NextPoll == nil {
		return time.Time{}
	}
	return d.NextPoll()
}

func (d *Deps) record(ctx context.Context, logger zerolog.Logger, c history.Cycle) {
	if d.Recorder == nil {
		return
	}
	if err := d.Recorder.RecordCycle(ctx, c); err != nil {
		logger.Warn().Err(err).Str("cycle", c.ID).Msg("failed to record cycle history")
	}
}

// spawnTask starts cmd for key in set and routes its exit to onExit on the loop.
func spawnTask[P any](
	set *taskset.Set[P], key string, payload P, d *Deps, cmd process.Command,
	onExit func(key string, exitErr error) error,
) error {
	return set.Start(key, payload, func() (taskset.Handle, error) {
		proc, err := d.Spawner.Spawn(cmd, func(exitErr error) {
			d.Poster.Post(func() error { return onExit(key, exitErr) })
		})
		if err != nil {
			return nil, err
		}
		return proc, nil
	})
}

func pids[P any](set *taskset.Set[P]) []int {
	var out []int
	for _, h := range set.Running() {
		out = append(out, h.PID())
	}
	return out
}
