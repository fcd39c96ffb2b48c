package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// ProgressPatch is a partial update to the progress half of a card.
// Nil pointer fields are left unchanged; ClearReviewed resets the
// reviewed timestamp to "never".
type ProgressPatch struct {
	Level         *int
	Reviewed      *time.Time
	ClearReviewed bool
}

// CardPatch is a partial update to a card. An empty ID means "create".
// Nil pointer and nil slice fields are left unchanged; pass an empty
// slice to clear Keywords or Tags.
type CardPatch struct {
	ID       string
	Question *string
	Answer   *string
	Keywords []string
	Tags     []string
	Starred  *bool
	Progress *ProgressPatch
}

// QueryType selects which availability index backs a GetCards call.
type QueryType string

const (
	// QueryAll lists every card in creation order.
	QueryAll QueryType = ""
	// QueryNew lists never-reviewed cards in creation order.
	QueryNew QueryType = "new"
	// QueryOverdue lists due cards, least overdue relative to their
	// level first.
	QueryOverdue QueryType = "overdue"
)

// GetCardsOptions narrows a GetCards call.
type GetCardsOptions struct {
	Limit int
	Type  QueryType
	// SkipFailedCards drops cards currently sitting in the failed
	// queues of the review record.
	SkipFailedCards bool
}

// PutCard creates or updates a card. Creation mints an identifier,
// retrying on the (unlikely) collision, and writes the two halves in
// order; if the progress half cannot be written the card half is rolled
// back so no half-created card survives. Updates touch only the halves
// the patch names and skip the write entirely when nothing changed.
func (s *CardStore) PutCard(ctx context.Context, patch CardPatch) (core.Card, error) {
	if patch.ID == "" {
		return s.createCard(ctx, patch)
	}
	return s.updateCard(ctx, patch)
}

func (s *CardStore) createCard(ctx context.Context, patch CardPatch) (core.Card, error) {
	now := s.clock().UTC()
	cr := cardRecord{
		Question: deref(patch.Question),
		Answer:   deref(patch.Answer),
		Keywords: trimSlice(patch.Keywords),
		Tags:     trimSlice(patch.Tags),
		Starred:  deref(patch.Starred),
		Created:  timeToMillis(now),
		Modified: timeToMillis(now),
	}
	pr := progressRecord{}
	if patch.Progress != nil {
		if patch.Progress.Level != nil {
			pr.Level = *patch.Progress.Level
		}
		if patch.Progress.Reviewed != nil && !patch.Progress.ClearReviewed {
			ms := timeToMillis(patch.Progress.Reviewed.UTC())
			pr.Reviewed = &ms
		}
	}

	cardData, err := json.Marshal(cr)
	if err != nil {
		return core.Card{}, fmt.Errorf("failed to encode card: %w", err)
	}
	progressData, err := json.Marshal(pr)
	if err != nil {
		return core.Card{}, fmt.Errorf("failed to encode progress: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return core.Card{}, err
		}

		id := s.ids.Next()

		_, err := s.db.Put(ctx, core.Document{ID: CardKey(id), Data: cardData})
		if errors.Is(err, core.ErrConflict) {
			s.logger.Debug("card id collision, regenerating", "id", id)
			continue
		}
		if err != nil {
			return core.Card{}, fmt.Errorf("failed to write card: %w", err)
		}

		_, err = s.db.Put(ctx, core.Document{ID: ProgressKey(id), Data: progressData})
		if errors.Is(err, core.ErrConflict) {
			// The progress slot for this id is taken; undo the card
			// half and try a new id.
			if derr := s.deleteStubborn(ctx, CardKey(id)); derr != nil {
				s.logger.Warn("failed to roll back card half", "id", id, "error", derr)
			}
			continue
		}
		if err != nil {
			if derr := s.deleteStubborn(ctx, CardKey(id)); derr != nil {
				s.logger.Warn("failed to roll back card half", "id", id, "error", derr)
			}
			return core.Card{}, fmt.Errorf("failed to write progress: %w", err)
		}

		return toCard(id, cr, pr), nil
	}
}

func (s *CardStore) updateCard(ctx context.Context, patch CardPatch) (core.Card, error) {
	id := patch.ID
	now := s.clock().UTC()

	if patch.Question != nil || patch.Answer != nil || patch.Keywords != nil ||
		patch.Tags != nil || patch.Starred != nil {
		_, err := s.db.Upsert(ctx, CardKey(id), func(cur *core.Document) (json.RawMessage, error) {
			if cur == nil {
				return nil, core.ErrNotFound
			}
			rec, err := decodeCardRecord(cur.Data)
			if err != nil {
				return nil, err
			}
			changed := false
			if patch.Question != nil && rec.Question != *patch.Question {
				rec.Question = *patch.Question
				changed = true
			}
			if patch.Answer != nil && rec.Answer != *patch.Answer {
				rec.Answer = *patch.Answer
				changed = true
			}
			if patch.Keywords != nil && !slices.Equal(normalizeSlice(rec.Keywords), patch.Keywords) {
				rec.Keywords = trimSlice(patch.Keywords)
				changed = true
			}
			if patch.Tags != nil && !slices.Equal(normalizeSlice(rec.Tags), patch.Tags) {
				rec.Tags = trimSlice(patch.Tags)
				changed = true
			}
			if patch.Starred != nil && rec.Starred != *patch.Starred {
				rec.Starred = *patch.Starred
				changed = true
			}
			if !changed {
				return nil, core.ErrNoChange
			}
			rec.Modified = timeToMillis(now)
			return json.Marshal(rec)
		})
		if err != nil {
			return core.Card{}, fmt.Errorf("card %s: %w", id, err)
		}
	}

	if patch.Progress != nil {
		if err := s.patchProgress(ctx, id, *patch.Progress); err != nil {
			return core.Card{}, err
		}
	}

	return s.GetCard(ctx, id)
}

func (s *CardStore) patchProgress(ctx context.Context, id string, p ProgressPatch) error {
	_, err := s.db.Upsert(ctx, ProgressKey(id), func(cur *core.Document) (json.RawMessage, error) {
		if cur == nil {
			return nil, core.ErrNotFound
		}
		rec, err := decodeProgressRecord(cur.Data)
		if err != nil {
			return nil, err
		}
		changed := false
		if p.Level != nil && rec.Level != *p.Level {
			rec.Level = *p.Level
			changed = true
		}
		if p.ClearReviewed {
			if rec.Reviewed != nil {
				rec.Reviewed = nil
				changed = true
			}
		} else if p.Reviewed != nil {
			ms := timeToMillis(p.Reviewed.UTC())
			if rec.Reviewed == nil || *rec.Reviewed != ms {
				rec.Reviewed = &ms
				changed = true
			}
		}
		if !changed {
			return nil, core.ErrNoChange
		}
		return json.Marshal(rec)
	})
	if err != nil {
		return fmt.Errorf("progress for card %s: %w", id, err)
	}
	return nil
}

// GetCard joins the two halves of a card. A card missing either half
// reports ErrNotFound.
func (s *CardStore) GetCard(ctx context.Context, id string) (core.Card, error) {
	cardDoc, err := s.db.Get(ctx, CardKey(id))
	if err != nil {
		return core.Card{}, fmt.Errorf("card %s: %w", id, err)
	}
	progressDoc, err := s.db.Get(ctx, ProgressKey(id))
	if err != nil {
		return core.Card{}, fmt.Errorf("card %s: %w", id, err)
	}

	cr, err := decodeCardRecord(cardDoc.Data)
	if err != nil {
		return core.Card{}, fmt.Errorf("card %s: %w", id, err)
	}
	pr, err := decodeProgressRecord(progressDoc.Data)
	if err != nil {
		return core.Card{}, fmt.Errorf("card %s: %w", id, err)
	}
	return toCard(id, cr, pr), nil
}

// GetCards lists cards through one of the availability indexes. Cards
// with a missing half (mid-replication) are silently skipped.
func (s *CardStore) GetCards(ctx context.Context, opts GetCardsOptions) ([]core.Card, error) {
	skip, err := s.failedCardSet(ctx, opts.SkipFailedCards)
	if err != nil {
		return nil, err
	}

	var rows []core.Row
	switch opts.Type {
	case QueryAll:
		rows, err = s.db.Query(ctx, viewCards, core.QueryOptions{})
	case QueryNew:
		rows, err = s.db.Query(ctx, viewNewCards, core.QueryOptions{})
	case QueryOverdue:
		start, end := 0.0, math.MaxFloat64
		rows, err = s.db.Query(ctx, viewOverdueness, core.QueryOptions{
			StartKey: &start,
			EndKey:   &end,
		})
	default:
		return nil, fmt.Errorf("unknown card query type %q", opts.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}

	cards := make([]core.Card, 0, len(rows))
	for _, row := range rows {
		var card core.Card
		var ok bool
		if opts.Type == QueryAll {
			card, ok = s.joinFromCardDoc(ctx, row.Doc)
		} else {
			card, ok = s.joinFromProgressDoc(ctx, row.Doc)
		}
		if !ok {
			continue
		}
		if _, failed := skip[card.ID]; failed {
			continue
		}
		cards = append(cards, card)
		if opts.Limit > 0 && len(cards) == opts.Limit {
			break
		}
	}
	return cards, nil
}

func (s *CardStore) joinFromCardDoc(ctx context.Context, doc core.Document) (core.Card, bool) {
	id := StripCardKey(doc.ID)
	cr, err := decodeCardRecord(doc.Data)
	if err != nil {
		return core.Card{}, false
	}
	progressDoc, err := s.db.Get(ctx, ProgressKey(id))
	if err != nil {
		return core.Card{}, false
	}
	pr, err := decodeProgressRecord(progressDoc.Data)
	if err != nil {
		return core.Card{}, false
	}
	return toCard(id, cr, pr), true
}

func (s *CardStore) joinFromProgressDoc(ctx context.Context, doc core.Document) (core.Card, bool) {
	id := StripProgressKey(doc.ID)
	pr, err := decodeProgressRecord(doc.Data)
	if err != nil {
		return core.Card{}, false
	}
	cardDoc, err := s.db.Get(ctx, CardKey(id))
	if err != nil {
		return core.Card{}, false
	}
	cr, err := decodeCardRecord(cardDoc.Data)
	if err != nil {
		return core.Card{}, false
	}
	return toCard(id, cr, pr), true
}

func (s *CardStore) failedCardSet(ctx context.Context, want bool) (map[string]struct{}, error) {
	if !want {
		return nil, nil
	}
	review, err := s.GetReview(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	skip := make(map[string]struct{}, len(review.FailedCardsLevel1)+len(review.FailedCardsLevel2))
	for _, id := range review.FailedCardsLevel1 {
		skip[id] = struct{}{}
	}
	for _, id := range review.FailedCardsLevel2 {
		skip[id] = struct{}{}
	}
	return skip, nil
}

// DeleteCard removes both halves of a card. It retries on revision
// conflicts and treats an already-deleted half (a concurrent remote
// deletion, say) as success.
func (s *CardStore) DeleteCard(ctx context.Context, id string) error {
	if err := s.deleteStubborn(ctx, CardKey(id)); err != nil {
		return fmt.Errorf("card %s: %w", id, err)
	}
	if err := s.deleteStubborn(ctx, ProgressKey(id)); err != nil {
		return fmt.Errorf("card %s: %w", id, err)
	}
	return nil
}

func (s *CardStore) deleteStubborn(ctx context.Context, key string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := s.db.Stat(ctx, key)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if doc.Deleted {
			return nil
		}

		_, err = s.db.Delete(ctx, key, doc.Rev)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, core.ErrConflict):
			continue
		case errors.Is(err, core.ErrNotFound):
			return nil
		default:
			return err
		}
	}
}

// OrphanedCards reports ids whose card half exists without a live
// progress half. Replication can produce these transiently; persistent
// ones are repair candidates.
func (s *CardStore) OrphanedCards(ctx context.Context) ([]string, error) {
	return s.orphans(ctx, CardPrefix, ProgressPrefix)
}

// OrphanedProgress reports ids whose progress half exists without a
// live card half.
func (s *CardStore) OrphanedProgress(ctx context.Context) ([]string, error) {
	return s.orphans(ctx, ProgressPrefix, CardPrefix)
}

func (s *CardStore) orphans(ctx context.Context, havePrefix, missingPrefix string) ([]string, error) {
	have, err := s.db.AllDocs(ctx, havePrefix+"*")
	if err != nil {
		return nil, err
	}
	other, err := s.db.AllDocs(ctx, missingPrefix+"*")
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(other))
	for _, doc := range other {
		present[doc.ID[len(missingPrefix):]] = struct{}{}
	}

	var out []string
	for _, doc := range have {
		id := doc.ID[len(havePrefix):]
		if _, ok := present[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
