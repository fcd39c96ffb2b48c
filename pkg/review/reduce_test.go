package review

import (
	"testing"
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
)

var reduceReviewTime = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newCard(id string) core.Card {
	return core.Card{ID: id}
}

func reviewedCard(id string, level int) core.Card {
	reviewed := reduceReviewTime.AddDate(0, 0, -level)
	return core.Card{ID: id, Progress: core.Progress{Level: level, Reviewed: &reviewed}}
}

// loadedSession builds a question-phase session with identity ordering:
// the heap keeps the given card order and draws come from the front.
func loadedSession(cards ...core.Card) State {
	s := Reduce(State{}, NewReview{MaxCards: 10, MaxNewCards: 2, ReviewTime: reduceReviewTime})
	return Reduce(s, ReviewLoaded{Cards: cards, HeapSeed: -1, CurrentSeed: -1, NextSeed: -1})
}

func currentID(t *testing.T, s State) string {
	t.Helper()
	if s.Current == nil {
		t.Fatal("expected a current card")
	}
	return s.Current.ID
}

func TestReduceNewReview(t *testing.T) {
	s := Reduce(State{}, NewReview{MaxCards: 10, MaxNewCards: 2, ReviewTime: reduceReviewTime})
	if s.Phase != PhaseLoading {
		t.Errorf("expected loading phase, got %v", s.Phase)
	}
	if s.MaxCards != 10 || s.MaxNewCards != 2 {
		t.Errorf("unexpected limits: %d/%d", s.MaxCards, s.MaxNewCards)
	}
}

func TestReduceReviewLoaded(t *testing.T) {
	t.Run("Draws Current And Next", func(t *testing.T) {
		s := loadedSession(newCard("a"), newCard("b"), reviewedCard("c", 1))
		if s.Phase != PhaseQuestion {
			t.Fatalf("expected question phase, got %v", s.Phase)
		}
		if got := currentID(t, s); got != "a" {
			t.Errorf("expected current a, got %s", got)
		}
		if s.Next == nil || s.Next.ID != "b" {
			t.Errorf("expected next b, got %+v", s.Next)
		}
		if len(s.Heap) != 1 || s.Heap[0].ID != "c" {
			t.Errorf("expected heap [c], got %+v", s.Heap)
		}
		if got := s.QuestionsRemaining(); got != 3 {
			t.Errorf("expected 3 questions remaining, got %d", got)
		}
	})

	t.Run("No Cards Completes Immediately", func(t *testing.T) {
		s := loadedSession()
		if s.Phase != PhaseComplete {
			t.Errorf("expected complete phase, got %v", s.Phase)
		}
	})

	t.Run("Ignored Outside Loading", func(t *testing.T) {
		s := loadedSession(newCard("a"))
		again := Reduce(s, ReviewLoaded{Cards: []core.Card{newCard("z")}, HeapSeed: -1})
		if len(again.Heap) != len(s.Heap) {
			t.Errorf("expected load to be ignored, heap %+v", again.Heap)
		}
	})
}

func TestReduceShowAnswer(t *testing.T) {
	s := loadedSession(newCard("a"), newCard("b"))
	s = Reduce(s, ShowAnswer{})
	if s.Phase != PhaseAnswer {
		t.Errorf("expected answer phase, got %v", s.Phase)
	}

	// Showing twice changes nothing.
	if again := Reduce(s, ShowAnswer{}); again.Phase != PhaseAnswer {
		t.Errorf("expected answer phase, got %v", again.Phase)
	}
}

func TestReducePassCard(t *testing.T) {
	s := loadedSession(newCard("a"), reviewedCard("b", 1), reviewedCard("c", 2))

	s = Reduce(s, PassCard{NextSeed: -1})
	if s.Completed != 1 || s.NewCardsCompleted != 1 {
		t.Errorf("expected 1 completed (1 new), got %d/%d", s.Completed, s.NewCardsCompleted)
	}
	if len(s.History) != 1 || s.History[0].ID != "a" {
		t.Errorf("expected history [a], got %+v", s.History)
	}
	if got := currentID(t, s); got != "b" {
		t.Errorf("expected next card promoted, got %s", got)
	}
	if s.Next == nil || s.Next.ID != "c" {
		t.Errorf("expected replacement drawn from heap, got %+v", s.Next)
	}

	s = Reduce(s, PassCard{NextSeed: -1})
	if s.Completed != 2 || s.NewCardsCompleted != 1 {
		t.Errorf("expected 2 completed (1 new), got %d/%d", s.Completed, s.NewCardsCompleted)
	}

	s = Reduce(s, PassCard{NextSeed: -1})
	if s.Phase != PhaseComplete {
		t.Errorf("expected complete after last card, got %v", s.Phase)
	}
	if s.Current != nil {
		t.Errorf("expected no current card, got %+v", s.Current)
	}

	// Terminal: further actions are ignored.
	if again := Reduce(s, PassCard{NextSeed: -1}); again.Completed != 3 {
		t.Errorf("expected pass after completion to be ignored, got %d", again.Completed)
	}
}

func TestReduceFailCard(t *testing.T) {
	s := loadedSession(reviewedCard("a", 1), reviewedCard("b", 1))

	s = Reduce(s, FailCard{NextSeed: -1})
	if len(s.FailedCardsLevel2) != 1 || s.FailedCardsLevel2[0].ID != "a" {
		t.Fatalf("expected a in the level-2 queue, got %+v", s.FailedCardsLevel2)
	}
	if s.Completed != 0 {
		t.Errorf("failing must not complete, got %d", s.Completed)
	}
	if got := s.RepeatQuestionsRemaining(); got != 2 {
		t.Errorf("expected 2 repeat questions owed, got %d", got)
	}
	if got := currentID(t, s); got != "b" {
		t.Errorf("expected b presented next, got %s", got)
	}
	// b was the pre-fetched next; the replacement comes from the failed
	// queue since the heap is dry.
	if s.Next == nil || s.Next.ID != "a" {
		t.Errorf("expected a re-served as next, got %+v", s.Next)
	}
	if got := s.QuestionsRemaining(); got != 2 {
		t.Errorf("expected 2 questions remaining, got %d", got)
	}
}

func TestReduceFailedCardRecovery(t *testing.T) {
	// One card failed once: it needs two consecutive passes to clear.
	s := loadedSession(reviewedCard("a", 2))
	s = Reduce(s, FailCard{NextSeed: -1})
	if got := currentID(t, s); got != "a" {
		t.Fatalf("expected a re-served, got %s", got)
	}

	s = Reduce(s, PassCard{NextSeed: -1})
	if s.Completed != 0 {
		t.Fatalf("expected first pass to only promote, got completed %d", s.Completed)
	}
	if len(s.FailedCardsLevel2) != 0 || len(s.FailedCardsLevel1) != 1 {
		t.Fatalf("expected promotion to level 1, got %+v / %+v",
			s.FailedCardsLevel2, s.FailedCardsLevel1)
	}
	if got := currentID(t, s); got != "a" {
		t.Fatalf("expected a re-served again, got %s", got)
	}

	s = Reduce(s, PassCard{NextSeed: -1})
	if s.Completed != 1 {
		t.Errorf("expected second pass to clear the card, got %d", s.Completed)
	}
	if len(s.FailedCardsLevel1) != 0 {
		t.Errorf("expected empty level-1 queue, got %+v", s.FailedCardsLevel1)
	}
	if s.Phase != PhaseComplete {
		t.Errorf("expected complete, got %v", s.Phase)
	}
}

func TestReduceFailDemotesFromLevel1(t *testing.T) {
	s := loadedSession(reviewedCard("a", 2))
	s = Reduce(s, FailCard{NextSeed: -1}) // a -> level 2
	s = Reduce(s, PassCard{NextSeed: -1}) // a -> level 1
	s = Reduce(s, FailCard{NextSeed: -1}) // a -> back to level 2

	if len(s.FailedCardsLevel1) != 0 || len(s.FailedCardsLevel2) != 1 {
		t.Errorf("expected demotion back to level 2, got %+v / %+v",
			s.FailedCardsLevel1, s.FailedCardsLevel2)
	}
	if got := s.RepeatQuestionsRemaining(); got != 2 {
		t.Errorf("expected 2 repeat questions owed, got %d", got)
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := loadedSession(newCard("a"), newCard("b"), newCard("c"))
	heapBefore := len(s.Heap)
	Reduce(s, PassCard{NextSeed: -1})
	if len(s.Heap) != heapBefore {
		t.Errorf("input state mutated: heap %d -> %d", heapBefore, len(s.Heap))
	}
	if s.Completed != 0 {
		t.Errorf("input state mutated: completed %d", s.Completed)
	}
}
