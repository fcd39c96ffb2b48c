// Package review models a review session as a pure state machine.
// Reducing an action never touches storage; the Selector (selector.go)
// performs the queries and durable updates around it. Randomness enters
// only through seeds carried on actions, so any session is replayable.
package review

import (
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// Phase is the review session phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseQuestion
	PhaseAnswer
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseQuestion:
		return "question"
	case PhaseAnswer:
		return "answer"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// State is one review session. Heap holds cards not yet presented;
// the failed queues track how many more correct answers a failed card
// needs this session (level 2: two, level 1: one). Current and Next are
// the card being shown and the pre-fetched follow-up. ReviewTime is
// fixed for the whole session so elapsed wall time never skews
// relative-date math.
type State struct {
	Phase Phase

	MaxCards    int
	MaxNewCards int

	Completed         int
	NewCardsCompleted int

	Heap              []core.Card
	FailedCardsLevel1 []core.Card
	FailedCardsLevel2 []core.Card
	History           []core.Card

	Current *core.Card
	Next    *core.Card

	ReviewTime time.Time
}

// QuestionsRemaining counts the questions still to be answered,
// including re-asks of failed cards. A current or next card served out
// of a failed queue stays in its queue, so it is not counted twice.
func (s State) QuestionsRemaining() int {
	n := len(s.Heap) + len(s.FailedCardsLevel1) + len(s.FailedCardsLevel2)
	if s.Current != nil && !s.inFailedQueues(s.Current.ID) {
		n++
	}
	if s.Next != nil && !s.inFailedQueues(s.Next.ID) {
		n++
	}
	return n
}

// RepeatQuestionsRemaining counts the re-asks owed to failed cards:
// two per level-2 entry, one per level-1 entry.
func (s State) RepeatQuestionsRemaining() int {
	return 2*len(s.FailedCardsLevel2) + len(s.FailedCardsLevel1)
}

// NewCardsInPlay counts never-reviewed cards already committed to this
// session, whether completed, queued, or on screen.
func (s State) NewCardsInPlay() int {
	n := s.NewCardsCompleted
	for _, c := range s.Heap {
		if isNewCard(c) {
			n++
		}
	}
	for _, c := range s.FailedCardsLevel1 {
		if isNewCard(c) {
			n++
		}
	}
	for _, c := range s.FailedCardsLevel2 {
		if isNewCard(c) {
			n++
		}
	}
	if s.Current != nil && isNewCard(*s.Current) && !s.inFailedQueues(s.Current.ID) {
		n++
	}
	if s.Next != nil && isNewCard(*s.Next) && !s.inFailedQueues(s.Next.ID) {
		n++
	}
	return n
}

// InPlayIDs reports every card id committed to the session, used to
// exclude them when topping the heap up mid-session.
func (s State) InPlayIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, c := range s.Heap {
		ids[c.ID] = struct{}{}
	}
	for _, c := range s.FailedCardsLevel1 {
		ids[c.ID] = struct{}{}
	}
	for _, c := range s.FailedCardsLevel2 {
		ids[c.ID] = struct{}{}
	}
	for _, c := range s.History {
		ids[c.ID] = struct{}{}
	}
	if s.Current != nil {
		ids[s.Current.ID] = struct{}{}
	}
	if s.Next != nil {
		ids[s.Next.ID] = struct{}{}
	}
	return ids
}

func (s State) inFailedQueues(id string) bool {
	return indexOfCard(s.FailedCardsLevel1, id) >= 0 ||
		indexOfCard(s.FailedCardsLevel2, id) >= 0
}

func isNewCard(c core.Card) bool {
	return c.Progress.Level == 0 && c.Progress.Reviewed == nil
}

func indexOfCard(cards []core.Card, id string) int {
	for i, c := range cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}
