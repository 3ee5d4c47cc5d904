package autobuild

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/history"
	"github.com/mrz1836/autocompose/internal/logging"
	"github.com/mrz1836/autocompose/internal/process"
	"github.com/mrz1836/autocompose/internal/publish"
	"github.com/mrz1836/autocompose/internal/taskset"
	"github.com/mrz1836/autocompose/internal/versiondir"
)

type imageTask struct {
	Ref       string
	Revision  string
	OSName    string
	Name      string
	WorkDir   string
	ResultDir string
	Command   string
	Err       string
}

type imageCycle struct {
	id      string
	version int
	dir     string
	started time.Time
}

// ImageBuildScheduler builds disk images for changed trees and publishes
// them through the A/B publish link. At most one cycle runs at a time.
type ImageBuildScheduler struct {
	deps      *Deps
	versions  *versiondir.Dir
	publisher *publish.Publisher
	argv      []string
	logger    zerolog.Logger

	tasks    *taskset.Set[imageTask]
	cycle    *imageCycle
	deferred []ImageRequest
}

// NewImageBuildScheduler creates an idle image scheduler. keys are the
// treefile keys in configuration order; builder is the image builder argv
// prefix.
func NewImageBuildScheduler(keys, builder []string, versions *versiondir.Dir, publisher *publish.Publisher, deps *Deps) *ImageBuildScheduler {
	return &ImageBuildScheduler{
		deps:      deps,
		versions:  versions,
		publisher: publisher,
		argv:      builder,
		logger:    deps.Logger.With().Str("component", "images").Logger(),
		tasks:     taskset.New[imageTask](keys, taskset.WithClock[imageTask](deps.clock())),
	}
}

// Running reports whether an image cycle is in flight.
func (s *ImageBuildScheduler) Running() bool {
	return s.cycle != nil
}

// RunningPIDs returns the PIDs of running image builders.
func (s *ImageBuildScheduler) RunningPIDs() []int {
	return pids(s.tasks)
}

// Request starts an image cycle for reqs. If a cycle is already running the
// request is kept and started when that cycle completes; a later request
// replaces an earlier kept one.
func (s *ImageBuildScheduler) Request(ctx context.Context, reqs []ImageRequest) error {
	if s.Running() {
		s.logger.Info().Str("cycle", s.cycle.id).
			Msg("image cycle already running; deferring request until it completes")
		s.deferred = reqs
		return nil
	}
	return s.start(ctx, reqs)
}

// RequestFresh resolves every definition's current revision and requests an
// image cycle for them. Definitions that fail to load or resolve are skipped.
func (s *ImageBuildScheduler) RequestFresh(ctx context.Context, defs []TreeDefinition) error {
	reqs := make([]ImageRequest, 0, len(defs))
	for _, def := range defs {
		req := ImageRequest{Key: def.Key, Ref: def.Ref, Images: def.Images}
		if def.Err != nil {
			s.logger.Warn().Err(def.Err).Str("treefile", def.Key).Msg("skipping treefile for images")
			continue
		}
		rev, found, err := s.deps.Repo.ResolveRevision(ctx, def.Ref)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("ref", def.Ref).Msg("failed to resolve ref for images")
		case !found:
			s.logger.Info().Str("ref", def.Ref).Msg("ref not composed yet")
		default:
			req.Revision = rev
		}
		reqs = append(reqs, req)
	}
	return s.Request(ctx, reqs)
}

func (s *ImageBuildScheduler) start(ctx context.Context, reqs []ImageRequest) error {
	// names derive from every configured ref so they stay stable while
	// some trees are still uncomposed
	var refs []string
	for _, r := range reqs {
		if r.Ref != "" {
			refs = append(refs, r.Ref)
		}
	}
	prefix := CommonRefPrefix(refs)

	var eligible []ImageRequest
	for _, r := range reqs {
		switch {
		case !r.Images:
			s.logger.Info().Str("treefile", r.Key).Msg("no disk images configured")
		case r.Revision == "":
			s.logger.Info().Str("treefile", r.Key).Msg("no revision for treefile; skipping images")
		default:
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		s.logger.Info().Msg("no trees eligible for images")
		return nil
	}

	version, dir, err := s.versions.Allocate()
	if err != nil {
		return errors.Wrap(err, "failed to allocate images version")
	}
	s.cycle = &imageCycle{id: newCycleID(), version: version, dir: dir, started: s.deps.now()}
	logger := s.logger.With().Str("cycle", s.cycle.id).Int("version", version).Logger()
	logger.Info().Str("dir", dir).Int("trees", len(eligible)).Msg("beginning images")

	for _, r := range eligible {
		osname, name := ImageName(r.Ref, prefix)
		workDir := filepath.Join(dir, ImageWorkDirName(name))
		payload := imageTask{
			Ref: r.Ref, Revision: r.Revision, OSName: osname, Name: name,
			WorkDir: workDir, ResultDir: filepath.Join(workDir, constants.ImageResultDir),
		}

		if err := resetDir(workDir); err != nil {
			payload.Err = err.Error()
			logger.Error().Err(err).Str("name", name).Msg("failed to prepare image work directory")
			if failErr := s.tasks.Fail(r.Key, payload); stderrors.Is(failErr, errors.ErrProtocol) {
				return failErr
			}
			s.deps.Metrics.TaskFailedToStart(history.StageImages)
			continue
		}

		argv := append(append([]string{}, s.argv...), s.deps.RepoPath, workDir, osname, r.Ref, r.Revision, name)
		cmd := process.Command{
			Argv:    argv,
			Dir:     workDir,
			LogPath: filepath.Join(workDir, constants.ImageLogFileName),
		}
		payload.Command = cmd.String()
		logger.Info().Str("name", name).
			Str("argv", logging.SafeValue("argv", payload.Command)).
			Msg("starting image build")

		spawnErr := spawnTask(s.tasks, r.Key, payload, s.deps, cmd, func(key string, exitErr error) error {
			return s.onExit(ctx, key, exitErr)
		})
		if spawnErr != nil {
			if stderrors.Is(spawnErr, errors.ErrProtocol) {
				return spawnErr
			}
			logger.Error().Err(spawnErr).Str("name", name).Msg("failed to start image build")
			s.deps.Metrics.TaskFailedToStart(history.StageImages)
			continue
		}
		s.deps.Metrics.TaskStarted(history.StageImages)
	}

	if s.tasks.AllDone() {
		return s.finish(ctx)
	}
	return nil
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o750)
}

func (s *ImageBuildScheduler) onExit(ctx context.Context, key string, exitErr error) error {
	task, err := s.tasks.Finish(ctx, key, exitErr == nil)
	if err != nil {
		return err
	}

	logger := s.logger.With().Str("cycle", s.cycle.id).Str("name", task.Payload.Name).Logger()
	if exitErr != nil {
		logger.Error().Err(exitErr).Str("argv", logging.SafeValue("argv", task.Payload.Command)).Msg("image build failed")
	} else {
		logger.Info().Msg("image build succeeded")
	}
	s.deps.Metrics.TaskFinished(history.StageImages, task.Success, task.Duration())

	if !s.tasks.AllDone() {
		return nil
	}
	return s.finish(ctx)
}

func (s *ImageBuildScheduler) finish(ctx context.Context) error {
	cycle := s.cycle
	success := s.tasks.AggregateSuccess()
	tasks := s.tasks.Tasks()
	logger := s.logger.With().Str("cycle", cycle.id).Int("version", cycle.version).Logger()

	manifest := &Manifest{
		Cycle: cycle.id, Stage: history.StageImages, Version: cycle.version,
		StartedAt: cycle.started, Success: success,
	}
	for _, t := range tasks {
		if t.Phase == taskset.Pending {
			continue
		}
		manifest.Trees = append(manifest.Trees, ManifestEntry{
			Treefile: t.Key, Ref: t.Payload.Ref, Name: t.Payload.Name,
			Revision: t.Payload.Revision, Success: t.Success, Error: t.Payload.Err,
		})
	}

	var published *int
	if success {
		manifest.FinishedAt = s.deps.now()
		slot, err := s.publisher.Publish(ctx, func(slotDir string) error {
			for _, t := range tasks {
				if t.Phase != taskset.Finished {
					continue
				}
				target := filepath.Join(slotDir, t.Payload.Name)
				if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
					return err
				}
				logger.Info().Str("from", t.Payload.ResultDir).Str("to", target).Msg("moving image results")
				if err := os.Rename(t.Payload.ResultDir, target); err != nil {
					return err
				}
			}
			return WriteManifest(slotDir, manifest)
		})
		switch {
		case err == nil:
			published = &slot
			s.deps.Metrics.Published(slot, s.deps.now())
			logger.Info().Int("slot", slot).Str("link", s.publisher.Link()).Msg("published images")
		case stderrors.Is(err, errors.ErrCorruptState):
			s.tasks.Clear()
			s.cycle = nil
			return err
		case ctx.Err() != nil:
			s.tasks.Clear()
			s.cycle = nil
			logger.Warn().Err(err).Msg("shutting down; images not published, publish link unchanged")
			return nil
		default:
			success = false
			manifest.Success = false
			logger.Error().Err(err).Msg("failed to publish images; publish link unchanged")
		}
	} else {
		logger.Warn().Msg("image cycle failed; publish link unchanged")
	}

	s.tasks.Clear()
	s.cycle = nil
	finished := s.deps.now()
	manifest.FinishedAt = finished

	if err := WriteManifest(cycle.dir, manifest); err != nil {
		logger.Warn().Err(err).Msg("failed to write images manifest")
	}
	record := history.Cycle{
		ID: cycle.id, Stage: history.StageImages, Version: cycle.version,
		StartedAt: cycle.started, FinishedAt: finished, Success: success, PublishedSlot: published,
	}
	for _, t := range tasks {
		if t.Phase == taskset.Pending {
			continue
		}
		record.Tasks = append(record.Tasks, history.Task{
			Key: t.Key, Name: t.Payload.Name, Success: t.Success,
			RevisionAfter: t.Payload.Revision, Duration: t.Duration(), Error: t.Payload.Err,
		})
	}
	s.deps.record(ctx, logger, record)
	s.deps.Metrics.CycleFinished(history.StageImages, success)
	logger.Info().Bool("success", success).Msg("images complete")

	if s.deferred != nil {
		reqs := s.deferred
		s.deferred = nil
		logger.Info().Msg("starting deferred image request")
		return s.start(ctx, reqs)
	}
	return nil
}

var _ ImageRequester = (*ImageBuildScheduler)(nil)
