package autobuild

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/autocompose/internal/config"
	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/history"
	"github.com/mrz1836/autocompose/internal/process"
	"github.com/mrz1836/autocompose/internal/publish"
	"github.com/mrz1836/autocompose/internal/testutil"
	"github.com/mrz1836/autocompose/internal/versiondir"
)

const (
	refHost  = "fedora-atomic/f23/x86_64/docker-host"
	refCloud = "fedora-atomic/f23/x86_64/cloud"
)

// queue is a Poster the test drains by hand.
type queue struct {
	mu     sync.Mutex
	events []Event
}

func (q *queue) Post(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
}

// drain runs queued events in order, including ones they queue, and returns
// the first error.
func (q *queue) drain() error {
	for {
		q.mu.Lock()
		if len(q.events) == 0 {
			q.mu.Unlock()
			return nil
		}
		ev := q.events[0]
		q.events = q.events[1:]
		q.mu.Unlock()
		if err := ev(); err != nil {
			return err
		}
	}
}

// fakePIDBase is above any kernel pid_max, so signaling a fake PID is a no-op.
const fakePIDBase = 1 << 30

type fakeProc int

func (p fakeProc) PID() int { return int(p) }

type launch struct {
	cmd    process.Command
	onExit process.ExitFunc
}

// fakeSpawner records launches; the test decides when each exits.
type fakeSpawner struct {
	mu       sync.Mutex
	launches []launch
	fail     func(cmd process.Command) error
	// auto, when set, runs in a goroutine per launch and its result is
	// delivered as the exit.
	auto func(cmd process.Command) error
}

func (s *fakeSpawner) Spawn(cmd process.Command, onExit process.ExitFunc) (process.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		if err := s.fail(cmd); err != nil {
			return nil, err
		}
	}
	s.launches = append(s.launches, launch{cmd: cmd, onExit: onExit})
	if s.auto != nil {
		go func() { onExit(s.auto(cmd)) }()
	}
	return fakeProc(fakePIDBase + len(s.launches)), nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.launches)
}

func (s *fakeSpawner) get(i int) launch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches[i]
}

func (s *fakeSpawner) exit(i int, err error) {
	s.get(i).onExit(err)
}

// fakeRepo resolves refs from a map the test mutates to simulate composes.
type fakeRepo struct {
	mu   sync.Mutex
	revs map[string]string
	errs map[string]error
}

func (r *fakeRepo) ResolveRevision(_ context.Context, ref string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[ref]; err != nil {
		return "", false, err
	}
	rev, ok := r.revs[ref]
	return rev, ok, nil
}

func (r *fakeRepo) set(ref, rev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revs[ref] = rev
}

type memRecorder struct {
	mu     sync.Mutex
	cycles []history.Cycle
}

func (m *memRecorder) RecordCycle(_ context.Context, c history.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, c)
	return nil
}

func (m *memRecorder) all() []history.Cycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Cycle(nil), m.cycles...)
}

type harness struct {
	workdir   string
	cfg       *config.Config
	q         *queue
	spawner   *fakeSpawner
	repo      *fakeRepo
	recorder  *memRecorder
	clock     *testutil.FakeClock
	publisher *publish.Publisher
	compose   *ComposeScheduler
	images    *ImageBuildScheduler
}

// writeTreefiles creates a.json (docker-host) and b.json (cloud) with images
// enabled for b only.
func writeTreefiles(t *testing.T, dir string) *config.Config {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"ref": "`+refHost+`"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"ref": "`+refCloud+`"}`), 0o600))
	cfg := config.DefaultConfig()
	cfg.Treefiles = []string{"a.json", "b.json"}
	cfg.PollTimeout = 10
	cfg.Disks = map[string]any{"b": true}
	cfg.Dir = dir
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	workdir := t.TempDir()
	h := &harness{
		workdir:  workdir,
		cfg:      writeTreefiles(t, t.TempDir()),
		q:        &queue{},
		spawner:  &fakeSpawner{},
		repo:     &fakeRepo{revs: map[string]string{}, errs: map[string]error{}},
		recorder: &memRecorder{},
		clock:    testutil.NewFakeClock(time.Date(2015, 11, 2, 10, 0, 0, 0, time.UTC)),
	}

	composeVersions, err := versiondir.Open(filepath.Join(workdir, constants.TasksDir, constants.ComposeTaskDir))
	require.NoError(t, err)
	imageVersions, err := versiondir.Open(filepath.Join(workdir, constants.TasksDir, constants.ImagesTaskDir))
	require.NoError(t, err)
	h.publisher, err = publish.New(filepath.Join(workdir, constants.ImagesDir, constants.ImagesLinkName))
	require.NoError(t, err)

	deps := &Deps{
		Workdir:  workdir,
		Repo:     h.repo,
		RepoPath: filepath.Join(workdir, constants.RepoDir),
		Spawner:  h.spawner,
		Poster:   h.q,
		Clock:    h.clock,
		Recorder: h.recorder,
		Logger:   zerolog.Nop(),
	}
	h.images = NewImageBuildScheduler(h.cfg.Treefiles, []string{"build-disks"}, imageVersions, h.publisher, deps)
	h.compose, err = NewComposeScheduler(h.cfg, composeVersions, h.images, deps)
	require.NoError(t, err)
	return h
}

func (h *harness) composeDir(v int) string {
	return filepath.Join(h.workdir, constants.TasksDir, constants.ComposeTaskDir, strconv.Itoa(v))
}

func (h *harness) imagesDir(v int) string {
	return filepath.Join(h.workdir, constants.TasksDir, constants.ImagesTaskDir, strconv.Itoa(v))
}

// fakeImageResult creates what a successful image builder leaves behind.
func fakeImageResult(t *testing.T, cmd process.Command, file string) {
	t.Helper()
	dir := filepath.Join(cmd.Dir, constants.ImageResultDir)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte("qcow2"), 0o600))
}
