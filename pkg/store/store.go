// Package store implements the flashcard data layer on top of a keyed
// document store: split card/progress records, availability indexes,
// joined change notifications, lookup suggestions, and debounced
// autosaving.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// View names registered against the storage engine.
const (
	viewCards       = "cards"
	viewNewCards    = "new_cards"
	viewOverdueness = "overdueness"
)

// conflictRegistry is the optional storage surface for installing
// domain conflict resolvers. The local engine implements it; test
// doubles need not.
type conflictRegistry interface {
	SetConflictResolver(prefix string, fn core.ConflictResolver)
}

// Config carries the knobs for a CardStore. Zero values are usable:
// a discard logger, the wall clock, and a review time derived from the
// clock at initialization.
type Config struct {
	Logger *slog.Logger

	// Clock supplies the current time for record timestamps and id
	// generation. Tests pin it.
	Clock func() time.Time

	// ReviewTime anchors the overdueness index. Zero means "now,
	// truncated to the minute".
	ReviewTime time.Time

	// AutoSaveDelay is the debounce window for queued saves.
	AutoSaveDelay time.Duration
}

// CardStore is the aggregate root of the data layer.
type CardStore struct {
	db     core.Storage
	logger *slog.Logger
	clock  func() time.Time
	ids    *IDGenerator

	broker   *Broker
	notifier *notifier
	tags     *Suggester
	keywords *Suggester
	saver    *AutoSaver

	mu         sync.RWMutex
	reviewTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New assembles a CardStore over the given storage engine. Call
// Initialize before use.
func New(db core.Storage, cfg Config) *CardStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &CardStore{
		db:     db,
		logger: logger,
		clock:  clock,
		ids:    NewIDGenerator(clock),
		broker: newBroker(),
	}
	s.notifier = newNotifier(s)
	s.tags = newSuggester(s, tagSource(s))
	s.keywords = newSuggester(s, keywordSource(s))

	reviewTime := cfg.ReviewTime
	if reviewTime.IsZero() {
		reviewTime = clock().UTC().Truncate(time.Minute)
	}
	s.reviewTime = reviewTime

	delay := cfg.AutoSaveDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	s.saver = newAutoSaver(delay, logger)

	return s
}

// Initialize registers indexes and conflict handling and starts the
// background notifier. Background work stops when ctx is done or Close
// is called.
func (s *CardStore) Initialize(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.saver.start(s.ctx)

	if reg, ok := s.db.(conflictRegistry); ok {
		reg.SetConflictResolver(ReviewPrefix, ReviewConflictResolver)
	}

	if err := s.registerViews(); err != nil {
		return err
	}

	if err := s.notifier.start(s.ctx); err != nil {
		return fmt.Errorf("failed to start change notifier: %w", err)
	}
	s.tags.start(s.ctx)
	s.keywords.start(s.ctx)

	s.logger.Debug("card store initialized", "review_time", s.ReviewTime())
	return nil
}

// Close stops background work and flushes pending saves.
func (s *CardStore) Close() error {
	var err error
	if s.ctx != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = s.saver.FlushAll(flushCtx)
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
	}
	return err
}

// Events exposes the joined change feeds.
func (s *CardStore) Events() *Broker {
	return s.broker
}

// Storage exposes the underlying engine, for replication wiring.
func (s *CardStore) Storage() core.Storage {
	return s.db
}

// Saver exposes the debounced autosave queue.
func (s *CardStore) Saver() *AutoSaver {
	return s.saver
}

// ReviewTime is the anchor of the overdueness index.
func (s *CardStore) ReviewTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reviewTime
}

// SetReviewTime moves the overdueness anchor, rebuilding the index.
// Queries issued while the rebuild runs suspend until it completes.
func (s *CardStore) SetReviewTime(reviewTime time.Time) error {
	reviewTime = reviewTime.UTC()

	s.mu.Lock()
	s.reviewTime = reviewTime
	s.mu.Unlock()

	return s.db.PutView(viewOverdueness,
		fmt.Sprintf("1-%d", timeToMillis(reviewTime)),
		overduenessMap(reviewTime))
}

func (s *CardStore) registerViews() error {
	if err := s.db.PutView(viewCards, "1", cardsMap); err != nil {
		return fmt.Errorf("failed to register cards index: %w", err)
	}
	if err := s.db.PutView(viewNewCards, "1", newCardsMap); err != nil {
		return fmt.Errorf("failed to register new-cards index: %w", err)
	}
	reviewTime := s.ReviewTime()
	if err := s.db.PutView(viewOverdueness,
		fmt.Sprintf("1-%d", timeToMillis(reviewTime)),
		overduenessMap(reviewTime)); err != nil {
		return fmt.Errorf("failed to register overdueness index: %w", err)
	}
	return nil
}

// cardsMap keys card halves by creation time so listings follow
// creation order.
func cardsMap(doc core.Document) (float64, bool) {
	if !strings.HasPrefix(doc.ID, CardPrefix) {
		return 0, false
	}
	rec, err := decodeCardRecord(doc.Data)
	if err != nil {
		return 0, false
	}
	return float64(rec.Created), true
}

// newCardsMap indexes progress halves of cards that have never been
// reviewed, keyed by the creation time encoded in the id.
func newCardsMap(doc core.Document) (float64, bool) {
	if !strings.HasPrefix(doc.ID, ProgressPrefix) {
		return 0, false
	}
	rec, err := decodeProgressRecord(doc.Data)
	if err != nil || rec.Reviewed != nil {
		return 0, false
	}
	if ts, ok := IDTimestamp(StripProgressKey(doc.ID)); ok {
		return float64(timeToMillis(ts)), true
	}
	return 0, true
}

// overduenessMap keys progress halves by overdueness at the captured
// review time. New cards land at +Inf, outside bounded queries.
func overduenessMap(reviewTime time.Time) core.MapFunc {
	return func(doc core.Document) (float64, bool) {
		if !strings.HasPrefix(doc.ID, ProgressPrefix) {
			return 0, false
		}
		rec, err := decodeProgressRecord(doc.Data)
		if err != nil {
			return 0, false
		}
		var reviewed *time.Time
		if rec.Reviewed != nil {
			t := millisToTime(*rec.Reviewed)
			reviewed = &t
		}
		return OverduenessScore(rec.Level, reviewed, reviewTime), true
	}
}
