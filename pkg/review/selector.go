package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
	"github.com/birchill/10sai-sub003/pkg/store"
)

// Store is the slice of the card store the selector drives.
type Store interface {
	GetCard(ctx context.Context, id string) (core.Card, error)
	GetCards(ctx context.Context, opts store.GetCardsOptions) ([]core.Card, error)
	PutCard(ctx context.Context, patch store.CardPatch) (core.Card, error)
	GetReview(ctx context.Context) (core.Review, error)
	PutReview(ctx context.Context, review core.Review) (core.Review, error)
	DeleteReview(ctx context.Context) error
}

// Selector runs review sessions: it selects cards through the store's
// availability indexes, feeds them to the reducer, persists progress
// updates as cards clear or fail, and keeps the durable review record
// in step so an interrupted session can resume.
type Selector struct {
	store  Store
	logger *slog.Logger
	seed   func() float64
}

// NewSelector builds a selector. A nil seed function uses the global
// random source; tests pin it for replayable sessions.
func NewSelector(st Store, logger *slog.Logger, seed func() float64) *Selector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if seed == nil {
		seed = rand.Float64
	}
	return &Selector{store: st, logger: logger, seed: seed}
}

// Begin starts a fresh session.
func (sel *Selector) Begin(ctx context.Context, maxCards, maxNewCards int, reviewTime time.Time) (State, error) {
	s := Reduce(State{}, NewReview{
		MaxCards:    maxCards,
		MaxNewCards: maxNewCards,
		ReviewTime:  reviewTime.UTC(),
	})
	return sel.load(ctx, s)
}

// Resume rebuilds a session from the durable review record. With no
// review underway it reports ErrNotFound.
func (sel *Selector) Resume(ctx context.Context) (State, error) {
	review, err := sel.store.GetReview(ctx)
	if err != nil {
		return State{}, err
	}

	s := State{
		Phase:             PhaseLoading,
		MaxCards:          review.MaxCards,
		MaxNewCards:       review.MaxNewCards,
		Completed:         review.Completed,
		NewCardsCompleted: review.NewCardsCompleted,
		ReviewTime:        review.ReviewTime,
	}
	for _, id := range review.History {
		// Only the id matters for completed cards; skip the fetch.
		s.History = append(s.History, core.Card{ID: id})
	}
	s.FailedCardsLevel1, err = sel.fetchCards(ctx, review.FailedCardsLevel1)
	if err != nil {
		return State{}, err
	}
	s.FailedCardsLevel2, err = sel.fetchCards(ctx, review.FailedCardsLevel2)
	if err != nil {
		return State{}, err
	}

	return sel.load(ctx, s)
}

// SetLimits changes the session limits and re-derives the heap.
func (sel *Selector) SetLimits(ctx context.Context, s State, maxCards, maxNewCards int) (State, error) {
	s = Reduce(s, SetReviewLimits{MaxCards: maxCards, MaxNewCards: maxNewCards})
	return sel.load(ctx, s)
}

// Show flips the current question over. Pure; included for symmetry.
func (sel *Selector) Show(s State) State {
	return Reduce(s, ShowAnswer{})
}

// Pass records a correct answer. If the card cleared the session its
// progress record is durably updated: the level escalates when the
// card was actually due, and the reviewed timestamp moves to the
// session's review time.
func (sel *Selector) Pass(ctx context.Context, s State) (State, error) {
	cur := s.Current
	ns := Reduce(s, PassCard{NextSeed: sel.seed()})

	if cur != nil && ns.Completed > s.Completed {
		level := NextLevel(cur.Progress.Level, daysSince(cur.Progress.Reviewed, s.ReviewTime))
		reviewed := s.ReviewTime
		_, err := sel.store.PutCard(ctx, store.CardPatch{
			ID: cur.ID,
			Progress: &store.ProgressPatch{
				Level:    &level,
				Reviewed: &reviewed,
			},
		})
		if err != nil {
			return s, fmt.Errorf("failed to update progress for card %s: %w", cur.ID, err)
		}
	}

	if err := sel.saveReview(ctx, ns); err != nil {
		return ns, err
	}
	return ns, nil
}

// Fail records an incorrect answer and durably resets the card's
// schedule: level back to zero with the review time recorded, so the
// card surfaces as due immediately in later sessions.
func (sel *Selector) Fail(ctx context.Context, s State) (State, error) {
	cur := s.Current
	applied := cur != nil && (s.Phase == PhaseQuestion || s.Phase == PhaseAnswer)
	ns := Reduce(s, FailCard{NextSeed: sel.seed()})

	if applied {
		level := 0
		reviewed := s.ReviewTime
		_, err := sel.store.PutCard(ctx, store.CardPatch{
			ID: cur.ID,
			Progress: &store.ProgressPatch{
				Level:    &level,
				Reviewed: &reviewed,
			},
		})
		if err != nil {
			return s, fmt.Errorf("failed to reset progress for card %s: %w", cur.ID, err)
		}
	}

	if err := sel.saveReview(ctx, ns); err != nil {
		return ns, err
	}
	return ns, nil
}

// Finish abandons or completes the session, clearing the durable
// record.
func (sel *Selector) Finish(ctx context.Context) error {
	return sel.store.DeleteReview(ctx)
}

func (sel *Selector) load(ctx context.Context, s State) (State, error) {
	action, err := sel.selectCards(ctx, s)
	if err != nil {
		return s, err
	}
	s = Reduce(s, action)
	if err := sel.saveReview(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// selectCards fills the free review slots: new cards first, capped by
// the new-card limit, then overdue cards for the remainder. Cards
// already committed to the session are excluded.
func (sel *Selector) selectCards(ctx context.Context, s State) (ReviewLoaded, error) {
	hasCurrent := 0
	if s.Current != nil {
		hasCurrent = 1
	}
	freeSlots := s.MaxCards - s.Completed -
		len(s.FailedCardsLevel1) - len(s.FailedCardsLevel2) - hasCurrent
	if freeSlots < 0 {
		freeSlots = 0
	}

	newSlots := s.MaxNewCards - s.NewCardsInPlay()
	if newSlots > freeSlots {
		newSlots = freeSlots
	}
	if newSlots < 0 {
		newSlots = 0
	}

	inPlay := s.InPlayIDs()
	var cards []core.Card

	if newSlots > 0 {
		fresh, err := sel.store.GetCards(ctx, store.GetCardsOptions{
			Type:  store.QueryNew,
			Limit: newSlots + len(inPlay),
		})
		if err != nil {
			return ReviewLoaded{}, fmt.Errorf("failed to select new cards: %w", err)
		}
		cards = appendEligible(cards, fresh, inPlay, newSlots)
	}

	overdueSlots := freeSlots - len(cards)
	if overdueSlots > 0 {
		overdue, err := sel.store.GetCards(ctx, store.GetCardsOptions{
			Type:            store.QueryOverdue,
			Limit:           overdueSlots + len(inPlay),
			SkipFailedCards: true,
		})
		if err != nil {
			return ReviewLoaded{}, fmt.Errorf("failed to select overdue cards: %w", err)
		}
		cards = appendEligible(cards, overdue, inPlay, freeSlots)
	}

	return ReviewLoaded{
		Cards:       cards,
		HeapSeed:    sel.seed(),
		CurrentSeed: sel.seed(),
		NextSeed:    sel.seed(),
	}, nil
}

func (sel *Selector) saveReview(ctx context.Context, s State) error {
	if s.Phase == PhaseComplete {
		return sel.store.DeleteReview(ctx)
	}

	review := core.Review{
		MaxCards:          s.MaxCards,
		MaxNewCards:       s.MaxNewCards,
		Completed:         s.Completed,
		NewCardsCompleted: s.NewCardsCompleted,
		History:           cardIDs(s.History),
		FailedCardsLevel1: cardIDs(s.FailedCardsLevel1),
		FailedCardsLevel2: cardIDs(s.FailedCardsLevel2),
		ReviewTime:        s.ReviewTime,
	}
	if _, err := sel.store.PutReview(ctx, review); err != nil {
		return fmt.Errorf("failed to save review state: %w", err)
	}
	return nil
}

func (sel *Selector) fetchCards(ctx context.Context, ids []string) ([]core.Card, error) {
	var cards []core.Card
	for _, id := range ids {
		card, err := sel.store.GetCard(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted since the review was saved; drop it.
			sel.logger.Debug("dropping deleted card from review", "id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func appendEligible(dst []core.Card, src []core.Card, inPlay map[string]struct{}, limit int) []core.Card {
	seen := make(map[string]struct{}, len(dst))
	for _, c := range dst {
		seen[c.ID] = struct{}{}
	}
	for _, c := range src {
		if len(dst) >= limit {
			break
		}
		if _, ok := inPlay[c.ID]; ok {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		dst = append(dst, c)
		seen[c.ID] = struct{}{}
	}
	return dst
}

func cardIDs(cards []core.Card) []string {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func daysSince(reviewed *time.Time, reviewTime time.Time) float64 {
	if reviewed == nil {
		return math.Inf(1)
	}
	return float64(reviewTime.Sub(*reviewed)) / float64(24*time.Hour)
}
