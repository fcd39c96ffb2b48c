package docdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/birchill/10sai-sub003/internal/feed"
	"github.com/birchill/10sai-sub003/pkg/core"
)

type subscriber struct {
	pattern string
	feed    *feed.Feed[core.Change]
}

// Changes implements core.Storage. Replay of entries after `since` and
// registration for live delivery happen atomically, so a subscriber
// neither misses nor double-receives a change across the boundary.
func (s *Store) Changes(ctx context.Context, pattern string, since uint64) (<-chan core.Change, error) {
	if _, err := doublestar.Match(pattern, "probe"); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	lifecycle.Go(subCtx, func(c context.Context) error {
		// Tear the subscription down when either the caller or the
		// store goes away.
		select {
		case <-c.Done():
		case <-s.ctx.Done():
			cancel()
		}
		return nil
	})

	sub := &subscriber{
		pattern: pattern,
		feed:    feed.New[core.Change](subCtx),
	}

	// Replay is pushed while still holding the mutex: notifyLocked also
	// runs under it, so no live change can slot in ahead of an older
	// replayed one. Feed pushes never block, so this is safe.
	s.mu.Lock()
	for _, ch := range s.changesSinceLocked(since, 0) {
		if sub.matches(ch.Doc.ID) {
			sub.feed.Push(ch)
		}
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	lifecycle.Go(subCtx, func(c context.Context) error {
		<-c.Done()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		return nil
	})

	return sub.feed.Out(), nil
}

func (sub *subscriber) matches(id string) bool {
	ok, err := doublestar.Match(sub.pattern, id)
	return err == nil && ok
}

// notifyLocked fans a change out to matching subscribers. Callers hold
// the store mutex; feed pushes never block.
func (s *Store) notifyLocked(ch core.Change) {
	for sub := range s.subs {
		if sub.matches(ch.Doc.ID) {
			sub.feed.Push(ch)
		}
	}
}

// changesSinceLocked collects entries with sequence greater than since,
// ordered by sequence, up to limit (0 = unlimited). Tombstones are
// included. Callers hold the store mutex.
func (s *Store) changesSinceLocked(since uint64, limit int) []core.Change {
	var out []core.Change
	for _, entry := range s.docs {
		if entry.seq > since {
			out = append(out, core.Change{Seq: entry.seq, Doc: entry.doc})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
