// Package autobuild schedules compose and image-build cycles.
//
// Everything that touches scheduler state runs on one goroutine, the Loop.
// Subprocess exits and timer fires are turned into events posted onto it,
// so the schedulers need no locks.
package autobuild

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/mrz1836/autocompose/internal/clock"
)

// Event is a unit of work run on the loop goroutine. A non-nil error stops
// the loop.
type Event func() error

// Poster accepts events for the loop goroutine.
type Poster interface {
	Post(ev Event)
}

const eventBuffer = 64

// Loop is the single-goroutine scheduling loop.
type Loop struct {
	clock    clock.Clock
	events   chan Event
	next     time.Time
	done     chan struct{}
	doneOnce sync.Once
}

// NewLoop creates a loop whose poll timer runs on clk.
func NewLoop(clk clock.Clock) *Loop {
	return &Loop{
		clock:  clk,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Post queues ev. It blocks while the queue is full and drops ev once the
// loop has stopped, so exit watchers never hang on a dead loop.
func (l *Loop) Post(ev Event) {
	select {
	case l.events <- ev:
	case <-l.done:
	}
}

// Run runs startup, then tick every interval, then posted events, until ctx
// is done or an event fails. reload, if non-nil, fires tick immediately.
// The timer is re-armed after every tick.
func (l *Loop) Run(ctx context.Context, interval time.Duration, startup, tick Event, reload <-chan struct{}) error {
	defer l.doneOnce.Do(func() { close(l.done) })

	if startup != nil {
		if err := startup(); err != nil {
			return err
		}
	}

	timer := l.arm(interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-l.events:
			if err := ev(); err != nil {
				return stopErr(ctx, err)
			}
		case <-timer:
			timer = l.arm(interval)
			if err := tick(); err != nil {
				return stopErr(ctx, err)
			}
		case <-reload:
			timer = l.arm(interval)
			if err := tick(); err != nil {
				return stopErr(ctx, err)
			}
		}
	}
}

// stopErr drops a cancellation error raised while ctx itself is done:
// that is a shutdown, not a failure.
func stopErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (l *Loop) arm(interval time.Duration) <-chan time.Time {
	l.next = l.clock.Now().Add(interval)
	return l.clock.After(interval)
}

// NextTick returns when the poll timer fires next. Only meaningful on the
// loop goroutine.
func (l *Loop) NextTick() time.Time {
	return l.next
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

var _ Poster = (*Loop)(nil)
