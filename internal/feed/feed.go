// Package feed provides an unbounded fan-out queue that decouples event
// producers from slow consumers. Producers never block; consumers read
// from a plain channel that closes when the subscription context ends.
package feed

import (
	"context"
	"sync"

	"github.com/aretw0/lifecycle"
)

// Feed buffers pushed values and delivers them in order on Out.
type Feed[T any] struct {
	mu     sync.Mutex
	queue  []T
	signal chan struct{}
	out    chan T
	closed bool
}

// New creates a feed and starts its pump goroutine. The pump drains the
// queue into Out until ctx is done, then closes Out.
func New[T any](ctx context.Context) *Feed[T] {
	f := &Feed[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(f.out)
		defer f.markClosed()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-f.signal:
			}

			for {
				v, ok := f.pop()
				if !ok {
					break
				}
				select {
				case f.out <- v:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	return f
}

// Push enqueues a value. It never blocks; pushes after the feed closed
// are dropped.
func (f *Feed[T]) Push(v T) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.queue = append(f.queue, v)
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// Out is the delivery channel. It closes when the feed's context ends.
func (f *Feed[T]) Out() <-chan T {
	return f.out
}

func (f *Feed[T]) pop() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	if len(f.queue) == 0 {
		return zero, false
	}
	v := f.queue[0]
	f.queue = f.queue[1:]
	return v, true
}

func (f *Feed[T]) markClosed() {
	f.mu.Lock()
	f.closed = true
	f.queue = nil
	f.mu.Unlock()
}
