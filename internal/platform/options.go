package platform

import (
	"log/slog"
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// options holds the internal configuration assembled by New.
type options struct {
	storage       core.Storage
	logger        *slog.Logger
	clock         func() time.Time
	reviewTime    time.Time
	watch         bool
	autoSaveDelay time.Duration
	systemDir     string
}

// Option is a functional option for configuring the data layer.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		systemDir: ".tensai",
	}
}

// WithLogger sets the logger used across the store and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock pins the time source. Tests use this to make record
// timestamps and id generation deterministic.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithReviewTime anchors the overdueness index at a fixed instant
// instead of "now".
func WithReviewTime(t time.Time) Option {
	return func(o *options) {
		o.reviewTime = t
	}
}

// WithWatch reconciles external edits to the store directory into the
// change feed.
func WithWatch(watch bool) Option {
	return func(o *options) {
		o.watch = watch
	}
}

// WithAutoSaveDelay sets the debounce window for queued saves.
func WithAutoSaveDelay(d time.Duration) Option {
	return func(o *options) {
		o.autoSaveDelay = d
	}
}

// WithStorage injects a custom storage engine (e.g. an in-memory test
// double). If provided, the default file-backed engine is skipped.
func WithStorage(db core.Storage) Option {
	return func(o *options) {
		o.storage = db
	}
}

// WithSystemDir overrides the hidden bookkeeping directory name.
func WithSystemDir(dir string) Option {
	return func(o *options) {
		o.systemDir = dir
	}
}
