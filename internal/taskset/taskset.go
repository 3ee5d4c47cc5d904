// Package taskset tracks one batch of concurrently running build tasks,
// one slot per tree definition, and aggregates their outcomes.
//
// A Set is not safe for concurrent use. The scheduler mutates it only from
// its event loop goroutine.
package taskset

import (
	"context"
	"time"

	"github.com/mrz1836/autocompose/internal/clock"
	"github.com/mrz1836/autocompose/internal/errors"
)

// Phase is the lifecycle phase of one slot.
type Phase int

// Slot phases.
const (
	// Pending slots were never started in this batch.
	Pending Phase = iota
	// Running slots have a live subprocess.
	Running
	// Finished slots carry an outcome.
	Finished
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Handle is the live process behind a running slot.
type Handle interface {
	PID() int
}

// Task is a snapshot of one slot. Handle is set only while Running;
// Success and Changed only once Finished.
type Task[P any] struct {
	Key        string
	Phase      Phase
	Handle     Handle
	Success    bool
	Changed    bool
	Payload    P
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time between start and finish.
func (t Task[P]) Duration() time.Duration {
	if t.Phase != Finished || t.StartedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// ChangeDetector decides whether a successfully finished task changed its
// output. An error turns the task into a failure.
type ChangeDetector[P any] func(ctx context.Context, key string, payload *P) (bool, error)

// Option configures a Set.
type Option[P any] func(*Set[P])

// WithChangeDetector installs the detector run on successful Finish.
func WithChangeDetector[P any](d ChangeDetector[P]) Option[P] {
	return func(s *Set[P]) { s.detect = d }
}

// WithClock sets the clock used for start and finish timestamps.
func WithClock[P any](c clock.Clock) Option[P] {
	return func(s *Set[P]) { s.clock = c }
}

// Set is a fixed table of task slots in key order.
type Set[P any] struct {
	keys   []string
	tasks  map[string]*Task[P]
	detect ChangeDetector[P]
	clock  clock.Clock
}

// New creates a set with one Pending slot per key. Duplicate keys collapse.
func New[P any](keys []string, opts ...Option[P]) *Set[P] {
	s := &Set[P]{
		tasks: make(map[string]*Task[P], len(keys)),
		clock: clock.RealClock{},
	}
	for _, k := range keys {
		if _, ok := s.tasks[k]; ok {
			continue
		}
		s.keys = append(s.keys, k)
		s.tasks[k] = &Task[P]{Key: k}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Set[P]) slot(key string) (*Task[P], error) {
	t, ok := s.tasks[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrProtocol, "unknown task %q", key)
	}
	return t, nil
}

// Start launches the slot for key. payload is recorded whatever the outcome.
// Starting a running slot is ErrProtocol. If spawn fails the slot is recorded
// as a finished failure and the spawn error is returned.
func (s *Set[P]) Start(key string, payload P, spawn func() (Handle, error)) error {
	t, err := s.slot(key)
	if err != nil {
		return err
	}
	if t.Phase == Running {
		return errors.Wrapf(errors.ErrProtocol, "task %q is already running", key)
	}

	now := s.clock.Now()
	*t = Task[P]{Key: key, Payload: payload, StartedAt: now}

	h, spawnErr := spawn()
	if spawnErr != nil {
		t.Phase = Finished
		t.FinishedAt = now
		return spawnErr
	}
	t.Phase = Running
	t.Handle = h
	return nil
}

// Fail records a task that could not be launched at all, such as one whose
// definition failed to load.
func (s *Set[P]) Fail(key string, payload P) error {
	return s.Start(key, payload, func() (Handle, error) {
		return nil, errors.ErrSubprocessFailed
	})
}

// Finish records the exit of the slot for key. Finishing a slot that is not
// running is ErrProtocol. On success the change detector, if any, decides
// Changed. The finished task is returned.
func (s *Set[P]) Finish(ctx context.Context, key string, success bool) (Task[P], error) {
	t, err := s.slot(key)
	if err != nil {
		return Task[P]{}, err
	}
	if t.Phase != Running {
		return Task[P]{}, errors.Wrapf(errors.ErrProtocol, "task %q is not running (%s)", key, t.Phase)
	}

	t.Phase = Finished
	t.Handle = nil
	t.Success = success
	t.FinishedAt = s.clock.Now()

	if success && s.detect != nil {
		changed, detectErr := s.detect(ctx, key, &t.Payload)
		if detectErr != nil {
			t.Success = false
			return *t, detectErr
		}
		t.Changed = changed
	}
	return *t, nil
}

// AllDone reports whether no slot is running.
func (s *Set[P]) AllDone() bool {
	for _, t := range s.tasks {
		if t.Phase == Running {
			return false
		}
	}
	return true
}

// AggregateSuccess reports whether every finished slot succeeded.
// Pending slots are ignored.
func (s *Set[P]) AggregateSuccess() bool {
	for _, t := range s.tasks {
		if t.Phase == Finished && !t.Success {
			return false
		}
	}
	return true
}

// AggregateChanged reports whether any finished slot changed.
func (s *Set[P]) AggregateChanged() bool {
	for _, t := range s.tasks {
		if t.Phase == Finished && t.Changed {
			return true
		}
	}
	return false
}

// Started reports how many slots left Pending in this batch.
func (s *Set[P]) Started() int {
	n := 0
	for _, t := range s.tasks {
		if t.Phase != Pending {
			n++
		}
	}
	return n
}

// Clear resets every slot to Pending and returns the changed flag the batch
// had. Callers clear only once AllDone.
func (s *Set[P]) Clear() bool {
	changed := s.AggregateChanged()
	for _, k := range s.keys {
		s.tasks[k] = &Task[P]{Key: k}
	}
	return changed
}

// Tasks returns a snapshot of every slot in key order.
func (s *Set[P]) Tasks() []Task[P] {
	out := make([]Task[P], 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, *s.tasks[k])
	}
	return out
}

// Get returns a snapshot of the slot for key.
func (s *Set[P]) Get(key string) (Task[P], bool) {
	t, ok := s.tasks[key]
	if !ok {
		return Task[P]{}, false
	}
	return *t, true
}

// Running returns the handles of running slots in key order.
func (s *Set[P]) Running() []Handle {
	var out []Handle
	for _, k := range s.keys {
		if t := s.tasks[k]; t.Phase == Running {
			out = append(out, t.Handle)
		}
	}
	return out
}

// Keys returns the slot keys in order.
func (s *Set[P]) Keys() []string {
	return append([]string(nil), s.keys...)
}
