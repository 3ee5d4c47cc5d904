package autobuild

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/autocompose/internal/config"
	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/history"
	"github.com/mrz1836/autocompose/internal/logging"
	"github.com/mrz1836/autocompose/internal/process"
	"github.com/mrz1836/autocompose/internal/taskset"
	"github.com/mrz1836/autocompose/internal/versiondir"
)

// ImageRequester starts (or queues) an image cycle for a set of revisions.
type ImageRequester interface {
	Request(ctx context.Context, reqs []ImageRequest) error
}

// ImageRequest is one tree's input to an image cycle.
type ImageRequest struct {
	Key      string
	Ref      string
	Revision string
	Images   bool
}

type composeTask struct {
	Treefile       string
	Ref            string
	Images         bool
	RevisionBefore string
	RevisionAfter  string
	Command        string
	Err            string
}

type composeCycle struct {
	id      string
	version int
	dir     string
	started time.Time
}

// ComposeScheduler runs one compose subprocess per treefile per cycle and
// decides whether the cycle changed anything.
type ComposeScheduler struct {
	deps     *Deps
	cfg      *config.Config
	versions *versiondir.Dir
	images   ImageRequester
	argv     []string
	logger   zerolog.Logger

	state ComposeState
	tasks *taskset.Set[composeTask]
	cycle *composeCycle
}

// NewComposeScheduler creates an idle compose scheduler.
func NewComposeScheduler(cfg *config.Config, versions *versiondir.Dir, images ImageRequester, deps *Deps) (*ComposeScheduler, error) {
	argv, err := cfg.ComposeArgv()
	if err != nil {
		return nil, err
	}
	s := &ComposeScheduler{
		deps:     deps,
		cfg:      cfg,
		versions: versions,
		images:   images,
		argv:     argv,
		logger:   deps.Logger.With().Str("component", "compose").Logger(),
	}
	s.tasks = taskset.New[composeTask](cfg.Treefiles,
		taskset.WithChangeDetector[composeTask](s.detectChange),
		taskset.WithClock[composeTask](deps.clock()),
	)
	return s, nil
}

// State returns the current state.
func (s *ComposeScheduler) State() ComposeState {
	return s.state
}

// RunningPIDs returns the PIDs of running compose subprocesses.
func (s *ComposeScheduler) RunningPIDs() []int {
	return pids(s.tasks)
}

// Poll handles a timer fire: it starts a cycle when idle and otherwise
// arranges for one to start as soon as the running cycle completes.
func (s *ComposeScheduler) Poll(ctx context.Context) error {
	switch s.state {
	case Idle:
		s.logger.Info().Msg("compose poll")
		return s.startCycle(ctx)
	case ComposeRunning:
		s.logger.Info().Int("version", s.cycle.version).
			Msg("compose poll while cycle is still running; will rerun after completion")
		return transition(&s.state, ComposePendingRerun)
	case ComposePendingRerun:
		s.logger.Debug().Msg("compose rerun already pending")
		return nil
	default:
		return errors.Wrapf(errors.ErrProtocol, "unknown compose state %d", s.state)
	}
}

func (s *ComposeScheduler) startCycle(ctx context.Context) error {
	version, dir, err := s.versions.Allocate()
	if err != nil {
		return errors.Wrap(err, "failed to allocate compose version")
	}
	if err := transition(&s.state, ComposeRunning); err != nil {
		return err
	}
	s.cycle = &composeCycle{id: newCycleID(), version: version, dir: dir, started: s.deps.now()}

	logger := s.logger.With().Str("cycle", s.cycle.id).Int("version", version).Logger()
	logger.Info().Str("dir", dir).Msg("beginning compose")

	repoArgs := []string{
		"--repo=" + s.deps.RepoPath,
		"--cachedir=" + filepath.Join(s.deps.Workdir, constants.CacheDir),
	}

	for _, def := range LoadDefinitions(s.cfg) {
		payload := composeTask{Treefile: def.Key, Ref: def.Ref, Images: def.Images}
		if def.Err != nil {
			payload.Err = def.Err.Error()
			logger.Error().Err(def.Err).Str("treefile", def.Key).Msg("failed to load treefile")
			if err := s.launchFailed(def.Key, payload); err != nil {
				return err
			}
			continue
		}

		rev, found, resolveErr := s.deps.Repo.ResolveRevision(ctx, def.Ref)
		if resolveErr != nil {
			payload.Err = resolveErr.Error()
			logger.Error().Err(resolveErr).Str("treefile", def.Key).Str("ref", def.Ref).Msg("failed to resolve ref")
			if err := s.launchFailed(def.Key, payload); err != nil {
				return err
			}
			continue
		}
		if found {
			payload.RevisionBefore = rev
		}

		argv := append(append(append([]string{}, s.argv...), repoArgs...), def.Path)
		cmd := process.Command{
			Argv:    argv,
			Dir:     dir,
			LogPath: filepath.Join(dir, ComposeLogName(def.Key)),
		}
		payload.Command = cmd.String()

		logger.Info().Str("treefile", def.Key).
			Str("argv", logging.SafeValue("argv", payload.Command)).
			Msg("starting compose")

		spawnErr := spawnTask(s.tasks, def.Key, payload, s.deps, cmd, func(key string, exitErr error) error {
			return s.onExit(ctx, key, exitErr)
		})
		if spawnErr != nil {
			if stderrors.Is(spawnErr, errors.ErrProtocol) {
				return spawnErr
			}
			logger.Error().Err(spawnErr).Str("treefile", def.Key).Msg("failed to start compose")
			s.deps.Metrics.TaskFailedToStart(history.StageCompose)
			continue
		}
		s.deps.Metrics.TaskStarted(history.StageCompose)
	}

	if s.tasks.AllDone() {
		return s.finishCycle(ctx)
	}
	return nil
}

func (s *ComposeScheduler) launchFailed(key string, payload composeTask) error {
	err := s.tasks.Fail(key, payload)
	if stderrors.Is(err, errors.ErrProtocol) {
		return err
	}
	s.deps.Metrics.TaskFailedToStart(history.StageCompose)
	return nil
}

func (s *ComposeScheduler) detectChange(ctx context.Context, key string, p *composeTask) (bool, error) {
	rev, found, err := s.deps.Repo.ResolveRevision(ctx, p.Ref)
	if err != nil {
		p.Err = err.Error()
		return false, err
	}
	if !found {
		p.Err = "ref " + p.Ref + " missing after compose"
		return false, errors.Wrapf(errors.ErrRepository, "ref %s of %s missing after compose", p.Ref, key)
	}
	p.RevisionAfter = rev
	return rev != p.RevisionBefore, nil
}

func (s *ComposeScheduler) onExit(ctx context.Context, key string, exitErr error) error {
	task, err := s.tasks.Finish(ctx, key, exitErr == nil)
	if stderrors.Is(err, errors.ErrProtocol) {
		return err
	}

	logger := s.logger.With().Str("cycle", s.cycle.id).Str("treefile", key).Logger()
	switch {
	case exitErr != nil:
		logger.Error().Err(exitErr).Str("argv", logging.SafeValue("argv", task.Payload.Command)).Msg("compose failed")
	case err != nil:
		logger.Error().Err(err).Msg("compose succeeded but revision check failed")
	case task.Changed:
		s.deps.Metrics.TreeChanged(key)
		logger.Info().Str("ref", task.Payload.Ref).Str("revision", task.Payload.RevisionAfter).Msg("compose changed ref")
	default:
		logger.Info().Str("ref", task.Payload.Ref).Msg("compose unchanged")
	}
	s.deps.Metrics.TaskFinished(history.StageCompose, task.Success, task.Duration())

	if !s.tasks.AllDone() {
		return nil
	}
	return s.finishCycle(ctx)
}

func (s *ComposeScheduler) finishCycle(ctx context.Context) error {
	cycle := s.cycle
	success := s.tasks.AggregateSuccess()
	tasks := s.tasks.Tasks()
	changed := s.tasks.Clear()
	finished := s.deps.now()

	logger := s.logger.With().Str("cycle", cycle.id).Int("version", cycle.version).Logger()
	logger.Info().Bool("success", success).Bool("changed", changed).Msg("compose complete")

	manifest := &Manifest{
		Cycle: cycle.id, Stage: history.StageCompose, Version: cycle.version,
		StartedAt: cycle.started, FinishedAt: finished, Success: success, Changed: changed,
	}
	record := history.Cycle{
		ID: cycle.id, Stage: history.StageCompose, Version: cycle.version,
		StartedAt: cycle.started, FinishedAt: finished, Success: success, Changed: changed,
	}
	reqs := make([]ImageRequest, 0, len(tasks))
	for _, t := range tasks {
		p := t.Payload
		revision := p.RevisionAfter
		if revision == "" {
			revision = p.RevisionBefore
		}
		manifest.Trees = append(manifest.Trees, ManifestEntry{
			Treefile: t.Key, Ref: p.Ref, RevisionBefore: p.RevisionBefore, Revision: revision,
			Success: t.Success, Changed: t.Changed, Error: p.Err,
		})
		record.Tasks = append(record.Tasks, history.Task{
			Key: t.Key, Success: t.Success, Changed: t.Changed,
			RevisionBefore: p.RevisionBefore, RevisionAfter: p.RevisionAfter,
			Duration: t.Duration(), Error: p.Err,
		})
		reqs = append(reqs, ImageRequest{Key: t.Key, Ref: p.Ref, Revision: revision, Images: p.Images})
	}

	if err := WriteManifest(cycle.dir, manifest); err != nil {
		logger.Warn().Err(err).Msg("failed to write compose manifest")
	}
	s.deps.record(ctx, logger, record)
	s.deps.Metrics.CycleFinished(history.StageCompose, success)
	s.cycle = nil

	if success && changed {
		if err := s.images.Request(ctx, reqs); err != nil {
			return err
		}
	}

	if s.state == ComposePendingRerun {
		logger.Info().Msg("starting pending compose rerun")
		return s.startCycle(ctx)
	}
	if err := transition(&s.state, Idle); err != nil {
		return err
	}
	next := s.deps.nextPoll()
	if next.IsZero() {
		next = finished.Add(s.cfg.PollInterval())
	}
	logger.Info().Time("next_poll", next).
		Dur("in", next.Sub(finished)).
		Msg("next compose scheduled")
	return nil
}
