package docdb

import (
	"context"
	"strings"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// This file implements core.Replica: the surface a sync engine uses to
// move documents between two stores. Replication transfers documents
// wholesale, preserving their revisions, so a round trip between two
// stores converges instead of ping-ponging new revisions.

// ID implements core.Replica.
func (s *Store) ID() string {
	return s.state.ID
}

// Sequence implements core.Replica.
func (s *Store) Sequence(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, nil
}

// ChangesSince implements core.Replica.
func (s *Store) ChangesSince(ctx context.Context, seq uint64, limit int) ([]core.Change, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changes := s.changesSinceLocked(seq, limit)
	last := s.seq
	if len(changes) > 0 && limit > 0 && len(changes) == limit {
		last = changes[len(changes)-1].Seq
	}
	return changes, last, nil
}

// Apply implements core.Replica. Incoming documents identical to the
// stored version are skipped without a change event, which is what
// keeps a batch sync of N cards from emitting more than N card events
// downstream.
func (s *Store) Apply(ctx context.Context, docs []core.Document) error {
	for _, incoming := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		cur, exists := s.docs[incoming.ID]
		if exists && cur.doc.Rev == incoming.Rev && cur.doc.Deleted == incoming.Deleted {
			s.mu.Unlock()
			continue
		}

		winner := incoming
		if exists {
			winner = s.resolveLocked(incoming, cur.doc)
			if winner.Rev == cur.doc.Rev && winner.Deleted == cur.doc.Deleted {
				// Local copy wins; nothing to write.
				s.mu.Unlock()
				continue
			}
		}

		s.seq++
		entry := docEntry{doc: winner, seq: s.seq}
		if err := s.persistLocked(entry); err != nil {
			s.seq--
			s.mu.Unlock()
			return err
		}
		s.docs[winner.ID] = entry
		s.updateViewsLocked(winner)
		s.notifyLocked(core.Change{Seq: entry.seq, Doc: winner})
		s.mu.Unlock()
	}

	return nil
}

// Checkpoint implements core.Replica.
func (s *Store) Checkpoint(ctx context.Context, peerID string) (uint64, error) {
	return s.state.checkpoint(peerID), nil
}

// SetCheckpoint implements core.Replica.
func (s *Store) SetCheckpoint(ctx context.Context, peerID string, seq uint64) error {
	return s.state.setCheckpoint(peerID, seq)
}

// resolveLocked picks the surviving version for a replicated document.
// The longest registered prefix resolver wins; the default policy takes
// the higher revision generation, tie broken by byte order of the
// revision token, so both sides settle on the same winner.
func (s *Store) resolveLocked(incoming, current core.Document) core.Document {
	var resolver core.ConflictResolver
	longest := -1
	for prefix, fn := range s.resolvers {
		if strings.HasPrefix(incoming.ID, prefix) && len(prefix) > longest {
			resolver = fn
			longest = len(prefix)
		}
	}
	if resolver != nil {
		return resolver(incoming, current)
	}
	return defaultWinner(incoming, current)
}

func defaultWinner(incoming, current core.Document) core.Document {
	ig, cg := revGeneration(incoming.Rev), revGeneration(current.Rev)
	if ig != cg {
		if ig > cg {
			return incoming
		}
		return current
	}
	if incoming.Rev > current.Rev {
		return incoming
	}
	return current
}

var _ core.Replica = (*Store)(nil)
