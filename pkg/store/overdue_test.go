package store_test

import (
	"math"
	"testing"
	"time"

	"github.com/birchill/10sai-sub003/pkg/store"
)

func TestOverduenessScore(t *testing.T) {
	reviewTime := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d float64) *time.Time {
		ts := reviewTime.Add(-time.Duration(d * 24 * float64(time.Hour)))
		return &ts
	}

	t.Run("Unreviewed Cards Sort Last", func(t *testing.T) {
		if got := store.OverduenessScore(0, daysAgo(5), reviewTime); !math.IsInf(got, 1) {
			t.Errorf("level 0: expected +Inf, got %v", got)
		}
		if got := store.OverduenessScore(3, nil, reviewTime); !math.IsInf(got, 1) {
			t.Errorf("nil reviewed: expected +Inf, got %v", got)
		}
	})

	t.Run("Due Exactly Now Is Zero", func(t *testing.T) {
		if got := store.OverduenessScore(3, daysAgo(3), reviewTime); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})

	t.Run("Not Yet Due Is Negative", func(t *testing.T) {
		if got := store.OverduenessScore(10, daysAgo(1), reviewTime); got >= 0 {
			t.Errorf("expected negative score, got %v", got)
		}
	})

	t.Run("Grows With Lateness", func(t *testing.T) {
		prev := store.OverduenessScore(2, daysAgo(2), reviewTime)
		for d := 3.0; d <= 30; d++ {
			got := store.OverduenessScore(2, daysAgo(d), reviewTime)
			if got <= prev {
				t.Fatalf("expected score to grow at %v days, got %v after %v", d, got, prev)
			}
			prev = got
		}
	})

	t.Run("Lower Levels Are More Urgent", func(t *testing.T) {
		// Same absolute lateness, but a level-1 card being three days
		// late matters more than a level-10 card being three days late.
		low := store.OverduenessScore(1, daysAgo(4), reviewTime)
		high := store.OverduenessScore(10, daysAgo(13), reviewTime)
		if low <= high {
			t.Errorf("expected level 1 (%v) above level 10 (%v)", low, high)
		}
	})
}
