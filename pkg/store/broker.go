package store

import (
	"context"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/birchill/10sai-sub003/internal/feed"
	"github.com/birchill/10sai-sub003/pkg/core"
)

// subSet is a fan-out group of subscribers for one event type. Each
// subscriber gets its own unbounded feed, so a slow consumer never
// stalls the publisher or its siblings.
type subSet[T any] struct {
	mu    sync.Mutex
	feeds map[*feed.Feed[T]]struct{}
}

func newSubSet[T any]() *subSet[T] {
	return &subSet[T]{feeds: make(map[*feed.Feed[T]]struct{})}
}

func (s *subSet[T]) subscribe(ctx context.Context) <-chan T {
	f := feed.New[T](ctx)

	s.mu.Lock()
	s.feeds[f] = struct{}{}
	s.mu.Unlock()

	lifecycle.Go(ctx, func(c context.Context) error {
		<-c.Done()
		s.mu.Lock()
		delete(s.feeds, f)
		s.mu.Unlock()
		return nil
	})

	return f.Out()
}

func (s *subSet[T]) publish(ev T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := range s.feeds {
		f.Push(ev)
	}
}

// Broker distributes joined change events to subscribers. Events are
// delivered in storage-feed order per subscriber.
type Broker struct {
	cards   *subSet[core.CardChange]
	notes   *subSet[core.NoteChange]
	reviews *subSet[core.ReviewChange]
}

func newBroker() *Broker {
	return &Broker{
		cards:   newSubSet[core.CardChange](),
		notes:   newSubSet[core.NoteChange](),
		reviews: newSubSet[core.ReviewChange](),
	}
}

// SubscribeCards delivers joined card events until ctx is done.
func (b *Broker) SubscribeCards(ctx context.Context) <-chan core.CardChange {
	return b.cards.subscribe(ctx)
}

// SubscribeNotes delivers note events until ctx is done.
func (b *Broker) SubscribeNotes(ctx context.Context) <-chan core.NoteChange {
	return b.notes.subscribe(ctx)
}

// SubscribeReviews delivers review events until ctx is done.
func (b *Broker) SubscribeReviews(ctx context.Context) <-chan core.ReviewChange {
	return b.reviews.subscribe(ctx)
}
