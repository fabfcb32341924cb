// README: Single-goroutine scheduler that owns all mutable session state.
package session

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("session closed")

// Loop runs posted functions one at a time on its own goroutine. Every read
// or write of a session's State happens inside a function run by its Loop,
// so State needs no locks. Functions run on the loop must not block on the
// network and must not call Do on the same loop.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run executes posted functions until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.quit:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn without waiting for it to run. It reports false when the
// loop has been closed. Post blocks while the queue is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops the loop. Functions still queued are dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }
