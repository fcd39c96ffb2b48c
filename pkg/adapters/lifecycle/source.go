// Package lifecycle bridges the card store's typed event feeds to the
// generic lifecycle event model, so applications can plumb card
// changes into a lifecycle-managed event loop.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/birchill/10sai-sub003/pkg/core"
)

type cardSource struct {
	events <-chan core.CardChange
	out    chan lifecycle.Event
}

// NewCardSource creates a lifecycle.Source that emits card change
// events from the given subscription channel.
func NewCardSource(events <-chan core.CardChange) lifecycle.Source {
	return &cardSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *cardSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *cardSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				// core.CardChange implements lifecycle.Event (has String()).
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
