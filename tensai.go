package tensai

import (
	"context"
	"log/slog"
	"time"

	"github.com/birchill/10sai-sub003/internal/platform"
	"github.com/birchill/10sai-sub003/pkg/core"
	"github.com/birchill/10sai-sub003/pkg/store"
)

// Version exposes the version of the library.
const Version = "0.1.0"

// --- Types ---

// Card is the joined question/answer/progress entity.
type Card = core.Card

// Progress is the review scheduling state of one card.
type Progress = core.Progress

// Note is a keyword-linked free-form note.
type Note = core.Note

// Review is the durable state of an in-progress review session.
type Review = core.Review

// CardChange is the joined event published for card mutations.
type CardChange = core.CardChange

// CardStore is the data layer's aggregate root.
type CardStore = store.CardStore

// CardPatch is a partial card write; an empty ID creates.
type CardPatch = store.CardPatch

// ProgressPatch is a partial progress write.
type ProgressPatch = store.ProgressPatch

// GetCardsOptions narrows a card listing.
type GetCardsOptions = store.GetCardsOptions

// Sentinel errors surfaced by the store.
var (
	ErrNotFound      = core.ErrNotFound
	ErrInvalidServer = core.ErrInvalidServer
)

// Card query types.
const (
	QueryAll     = store.QueryAll
	QueryNew     = store.QueryNew
	QueryOverdue = store.QueryOverdue
)

// --- Configuration ---

// Option defines a functional option for configuring the store.
type Option = platform.Option

// WithLogger sets the logger for the store and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithClock pins the time source (useful for testing).
func WithClock(clock func() time.Time) Option {
	return platform.WithClock(clock)
}

// WithReviewTime anchors the overdueness ranking at a fixed instant.
func WithReviewTime(t time.Time) Option {
	return platform.WithReviewTime(t)
}

// WithWatch folds external edits to the store directory into the
// change feed.
func WithWatch(watch bool) Option {
	return platform.WithWatch(watch)
}

// WithAutoSaveDelay sets the debounce window for queued saves.
func WithAutoSaveDelay(d time.Duration) Option {
	return platform.WithAutoSaveDelay(d)
}

// WithStorage allows injecting a custom storage engine.
func WithStorage(db core.Storage) Option {
	return platform.WithStorage(db)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".tensai").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// --- Patch helpers ---

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Int returns a pointer to i, for building patches.
func Int(i int) *int { return &i }

// Bool returns a pointer to b, for building patches.
func Bool(b bool) *bool { return &b }

// --- Factory ---

// New opens the card store at the given directory.
func New(ctx context.Context, path string, opts ...Option) (*CardStore, error) {
	return platform.New(ctx, path, opts...)
}
