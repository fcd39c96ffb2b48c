package review

import (
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// Action is a review session transition input. Actions that need
// randomness carry their seeds, keeping Reduce a pure function.
type Action interface {
	isAction()
}

// NewReview starts a fresh session with the given limits.
type NewReview struct {
	MaxCards    int
	MaxNewCards int
	ReviewTime  time.Time
}

// SetReviewLimits changes the limits of a running session and sends it
// back to loading so the heap is re-derived against the new slots.
type SetReviewLimits struct {
	MaxCards    int
	MaxNewCards int
}

// ReviewLoaded delivers the selected cards. HeapSeed orders the heap;
// CurrentSeed and NextSeed draw the first cards when none are on
// screen.
type ReviewLoaded struct {
	Cards       []core.Card
	HeapSeed    float64
	CurrentSeed float64
	NextSeed    float64
}

// ShowAnswer flips the current question over.
type ShowAnswer struct{}

// PassCard records a correct answer and advances to the next card.
type PassCard struct {
	NextSeed float64
}

// FailCard records an incorrect answer, queues the card for re-asking,
// and advances.
type FailCard struct {
	NextSeed float64
}

func (NewReview) isAction()       {}
func (SetReviewLimits) isAction() {}
func (ReviewLoaded) isAction()    {}
func (ShowAnswer) isAction()      {}
func (PassCard) isAction()        {}
func (FailCard) isAction()        {}
