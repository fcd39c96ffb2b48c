package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// GetReview retrieves the in-progress review, or ErrNotFound when no
// review is underway.
func (s *CardStore) GetReview(ctx context.Context) (core.Review, error) {
	doc, err := s.db.Get(ctx, ReviewKey)
	if err != nil {
		return core.Review{}, fmt.Errorf("review: %w", err)
	}
	rec, err := decodeReviewRecord(doc.Data)
	if err != nil {
		return core.Review{}, fmt.Errorf("review: %w", err)
	}
	return toReview(rec), nil
}

// PutReview records the state of the in-progress review, creating the
// record if none exists. The stored creation time survives updates so
// conflict resolution can tell competing review sessions apart.
func (s *CardStore) PutReview(ctx context.Context, review core.Review) (core.Review, error) {
	now := s.clock().UTC()

	doc, err := s.db.Upsert(ctx, ReviewKey, func(cur *core.Document) (json.RawMessage, error) {
		rec := fromReview(review)
		rec.Modified = timeToMillis(now)
		if cur == nil {
			rec.Created = timeToMillis(now)
			return json.Marshal(rec)
		}

		old, err := decodeReviewRecord(cur.Data)
		if err != nil {
			return nil, err
		}
		rec.Created = old.Created
		if reviewRecordsEqual(rec, old) {
			return nil, core.ErrNoChange
		}
		return json.Marshal(rec)
	})
	if err != nil {
		return core.Review{}, fmt.Errorf("review: %w", err)
	}

	rec, err := decodeReviewRecord(doc.Data)
	if err != nil {
		return core.Review{}, fmt.Errorf("review: %w", err)
	}
	return toReview(rec), nil
}

// DeleteReview clears the in-progress review. Finishing a review that
// was concurrently finished elsewhere is not an error.
func (s *CardStore) DeleteReview(ctx context.Context) error {
	if err := s.deleteStubborn(ctx, ReviewKey); err != nil {
		return fmt.Errorf("review: %w", err)
	}
	return nil
}

// reviewRecordsEqual ignores Modified so a rewrite of identical state
// is skipped.
func reviewRecordsEqual(a, b reviewRecord) bool {
	a.Modified = 0
	b.Modified = 0

	if a.MaxCards != b.MaxCards || a.MaxNewCards != b.MaxNewCards ||
		a.Completed != b.Completed || a.NewCardsCompleted != b.NewCardsCompleted ||
		a.ReviewTime != b.ReviewTime || a.Created != b.Created {
		return false
	}
	return slices.Equal(a.History, b.History) &&
		slices.Equal(a.FailedCardsLevel1, b.FailedCardsLevel1) &&
		slices.Equal(a.FailedCardsLevel2, b.FailedCardsLevel2)
}

// ReviewConflictResolver settles replication conflicts on the review
// record. The review started earlier wins, since the later one was
// started in ignorance of it; between records from the same session the
// more recently modified state wins. Tombstones and unparseable records
// fall back to the default revision rule.
func ReviewConflictResolver(incoming, current core.Document) core.Document {
	if incoming.Deleted || current.Deleted {
		return defaultDocumentWinner(incoming, current)
	}

	in, inErr := decodeReviewRecord(incoming.Data)
	cur, curErr := decodeReviewRecord(current.Data)
	if inErr != nil || curErr != nil {
		return defaultDocumentWinner(incoming, current)
	}

	switch {
	case in.Created < cur.Created:
		return incoming
	case cur.Created < in.Created:
		return current
	case in.Modified > cur.Modified:
		return incoming
	default:
		return current
	}
}

// defaultDocumentWinner mirrors the storage engine's generation rule:
// higher generation wins, ties go to the greater revision string.
func defaultDocumentWinner(incoming, current core.Document) core.Document {
	ig, cg := revGen(incoming.Rev), revGen(current.Rev)
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

func revGen(rev string) int {
	gen := 0
	for i := 0; i < len(rev) && rev[i] >= '0' && rev[i] <= '9'; i++ {
		gen = gen*10 + int(rev[i]-'0')
	}
	return gen
}
