package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// notifier folds raw storage changes into whole-entity events. Card and
// progress halves are joined before publishing so subscribers only ever
// see complete cards, and the revision pair of the last event per card
// is remembered so the two raw changes a local PutCard produces
// collapse into one event.
type notifier struct {
	store *CardStore

	mu           sync.Mutex
	lastReturned map[string]revPair
}

type revPair struct {
	card     string
	progress string
}

func newNotifier(s *CardStore) *notifier {
	return &notifier{
		store:        s,
		lastReturned: make(map[string]revPair),
	}
}

// start subscribes to the live change feed. Changes arrive and are
// handled strictly in feed order on a single goroutine.
func (n *notifier) start(ctx context.Context) error {
	seq, err := n.store.db.Sequence(ctx)
	if err != nil {
		return fmt.Errorf("failed to read feed position: %w", err)
	}
	ch, err := n.store.db.Changes(ctx, "{card,progress,note,review}-*", seq)
	if err != nil {
		return err
	}

	lifecycle.Go(ctx, func(c context.Context) error {
		for change := range ch {
			n.handle(c, change)
		}
		return nil
	})
	return nil
}

func (n *notifier) handle(ctx context.Context, change core.Change) {
	doc := change.Doc
	switch {
	case strings.HasPrefix(doc.ID, CardPrefix):
		n.handleCardChange(ctx, StripCardKey(doc.ID), doc)
	case strings.HasPrefix(doc.ID, ProgressPrefix):
		n.handleProgressChange(ctx, StripProgressKey(doc.ID), doc)
	case strings.HasPrefix(doc.ID, NotePrefix):
		n.handleNoteChange(StripNoteKey(doc.ID), doc)
	case strings.HasPrefix(doc.ID, ReviewPrefix):
		n.handleReviewChange(doc)
	}
}

func (n *notifier) handleCardChange(ctx context.Context, id string, cardDoc core.Document) {
	progressDoc, err := n.store.db.Stat(ctx, ProgressKey(id))

	if cardDoc.Deleted {
		var progressRev string
		if err == nil {
			progressRev = progressDoc.Rev
		}
		n.emit(id, revPair{card: cardDoc.Rev, progress: progressRev}, nil)
		return
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		// The progress half has not arrived yet (replication delivers
		// the halves independently). Its change will trigger the join.
		return
	case err != nil:
		n.store.logger.Warn("failed to join progress half", "id", id, "error", err)
		return
	}

	cr, cerr := decodeCardRecord(cardDoc.Data)
	if cerr != nil {
		n.store.logger.Warn("ignoring unparseable card change", "id", id, "error", cerr)
		return
	}

	if progressDoc.Deleted {
		// Both halves are on their way out; publish the card half with
		// default progress so subscribers see the final content.
		card := toCard(id, cr, progressRecord{})
		n.emit(id, revPair{card: cardDoc.Rev, progress: progressDoc.Rev}, &card)
		return
	}

	pr, perr := decodeProgressRecord(progressDoc.Data)
	if perr != nil {
		n.store.logger.Warn("ignoring unparseable progress half", "id", id, "error", perr)
		return
	}
	card := toCard(id, cr, pr)
	n.emit(id, revPair{card: cardDoc.Rev, progress: progressDoc.Rev}, &card)
}

func (n *notifier) handleProgressChange(ctx context.Context, id string, progressDoc core.Document) {
	cardDoc, err := n.store.db.Stat(ctx, CardKey(id))
	switch {
	case errors.Is(err, core.ErrNotFound):
		// Card half not arrived yet; its change will trigger the join.
		return
	case err != nil:
		n.store.logger.Warn("failed to join card half", "id", id, "error", err)
		return
	}
	if cardDoc.Deleted || progressDoc.Deleted {
		// Deletions are announced from the card side.
		return
	}

	cr, cerr := decodeCardRecord(cardDoc.Data)
	if cerr != nil {
		n.store.logger.Warn("ignoring unparseable card half", "id", id, "error", cerr)
		return
	}
	pr, perr := decodeProgressRecord(progressDoc.Data)
	if perr != nil {
		n.store.logger.Warn("ignoring unparseable progress change", "id", id, "error", perr)
		return
	}
	card := toCard(id, cr, pr)
	n.emit(id, revPair{card: cardDoc.Rev, progress: progressDoc.Rev}, &card)
}

// emit publishes unless an event for the identical revision pair was
// already returned for this card. A deletion drops the card's dedupe
// entry: no further joins reference the id, and a later re-create under
// the same id starts fresh.
func (n *notifier) emit(id string, pair revPair, card *core.Card) {
	n.mu.Lock()
	if n.lastReturned[id] == pair {
		n.mu.Unlock()
		return
	}
	if card == nil {
		delete(n.lastReturned, id)
	} else {
		n.lastReturned[id] = pair
	}
	n.mu.Unlock()

	n.store.broker.cards.publish(core.CardChange{ID: id, Card: card})
}

func (n *notifier) handleNoteChange(id string, doc core.Document) {
	if doc.Deleted {
		n.store.broker.notes.publish(core.NoteChange{ID: id})
		return
	}
	rec, err := decodeNoteRecord(doc.Data)
	if err != nil {
		n.store.logger.Warn("ignoring unparseable note change", "id", id, "error", err)
		return
	}
	note := toNote(id, rec)
	n.store.broker.notes.publish(core.NoteChange{ID: id, Note: &note})
}

func (n *notifier) handleReviewChange(doc core.Document) {
	if doc.Deleted {
		n.store.broker.reviews.publish(core.ReviewChange{})
		return
	}
	rec, err := decodeReviewRecord(doc.Data)
	if err != nil {
		n.store.logger.Warn("ignoring unparseable review change", "error", err)
		return
	}
	review := toReview(rec)
	n.store.broker.reviews.publish(core.ReviewChange{Review: &review})
}
