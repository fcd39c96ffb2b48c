package store

import (
	"math"
	"time"
)

// overduenessExpWeight tunes the exponential term of the overdueness
// score so long-neglected cards eventually outrank everything else.
const overduenessExpWeight = 0.00225

const dayDuration = 24 * time.Hour

// OverduenessScore ranks a card for review selection at the given
// review time. A card is due `level` days after it was last reviewed;
// the score combines the overdue fraction relative to the level with an
// exponential term in the absolute days overdue. New cards (level zero
// or never reviewed) score positive infinity, which keeps them out of
// bounded overdue queries.
func OverduenessScore(level int, reviewed *time.Time, reviewTime time.Time) float64 {
	if level <= 0 || reviewed == nil {
		return math.Inf(1)
	}
	daysSinceReviewed := float64(reviewTime.Sub(*reviewed)) / float64(dayDuration)
	daysOverdue := daysSinceReviewed - float64(level)
	return daysOverdue/float64(level) + math.Expm1(overduenessExpWeight*daysOverdue)
}
