package platform

import (
	"context"
	"sync"
)

// Scheduler defers work to the next processing tick. The prestige tracker
// uses this as its one suspension point: the external prestige command has
// not necessarily committed its state by the time the trigger is observed,
// so the re-query must run after the current tick completes.
type Scheduler interface {
	RunNextTick(fn func())
}

// TickLoop is a single-goroutine run-to-completion work queue. All event
// dispatch and deferred continuations execute on the loop goroutine, so
// handlers never run concurrently with each other.
type TickLoop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

// NewTickLoop creates a TickLoop. Run must be called for queued work to
// execute.
func NewTickLoop() *TickLoop {
	return &TickLoop{wake: make(chan struct{}, 1)}
}

// RunNextTick enqueues fn to run after all currently queued work. It is
// safe to call from the loop goroutine itself; the continuation runs on a
// later tick, never reentrantly.
func (l *TickLoop) RunNextTick(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes queued work until ctx is cancelled. Work queued before
// cancellation but not yet started is dropped.
func (l *TickLoop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.queue = nil
			l.mu.Unlock()
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()
		}
	}
}

// Submit enqueues fn and is an alias of RunNextTick; the name marks call
// sites that feed external events into the loop rather than deferring.
func (l *TickLoop) Submit(fn func()) {
	l.RunNextTick(fn)
}
