package review

import (
	"slices"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// Reduce applies an action to a session state, returning the next
// state. The input state is never mutated. Actions that do not apply
// in the current phase are ignored.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case NewReview:
		return State{
			Phase:       PhaseLoading,
			MaxCards:    a.MaxCards,
			MaxNewCards: a.MaxNewCards,
			ReviewTime:  a.ReviewTime,
		}

	case SetReviewLimits:
		ns := clone(s)
		ns.MaxCards = a.MaxCards
		ns.MaxNewCards = a.MaxNewCards
		ns.Phase = PhaseLoading
		return ns

	case ReviewLoaded:
		if s.Phase != PhaseLoading {
			return s
		}
		ns := clone(s)
		ns.Heap = ShuffleWithSeed(a.Cards, a.HeapSeed)
		if ns.Current == nil {
			ns.Current = draw(&ns, a.CurrentSeed)
		}
		if ns.Next == nil && ns.Current != nil {
			ns.Next = draw(&ns, a.NextSeed)
		}
		if ns.Current == nil {
			ns.Phase = PhaseComplete
		} else {
			ns.Phase = PhaseQuestion
		}
		return ns

	case ShowAnswer:
		if s.Phase != PhaseQuestion {
			return s
		}
		ns := clone(s)
		ns.Phase = PhaseAnswer
		return ns

	case PassCard:
		if (s.Phase != PhaseQuestion && s.Phase != PhaseAnswer) || s.Current == nil {
			return s
		}
		ns := clone(s)
		cur := *ns.Current
		if i := indexOfCard(ns.FailedCardsLevel2, cur.ID); i >= 0 {
			// One down, one to go: promote to the level-1 queue.
			ns.FailedCardsLevel2 = slices.Delete(ns.FailedCardsLevel2, i, i+1)
			ns.FailedCardsLevel1 = append(ns.FailedCardsLevel1, cur)
		} else {
			if i := indexOfCard(ns.FailedCardsLevel1, cur.ID); i >= 0 {
				ns.FailedCardsLevel1 = slices.Delete(ns.FailedCardsLevel1, i, i+1)
			}
			ns.History = append(ns.History, cur)
			ns.Completed++
			if isNewCard(cur) {
				ns.NewCardsCompleted++
			}
		}
		advance(&ns, a.NextSeed)
		return ns

	case FailCard:
		if (s.Phase != PhaseQuestion && s.Phase != PhaseAnswer) || s.Current == nil {
			return s
		}
		ns := clone(s)
		cur := *ns.Current
		if i := indexOfCard(ns.FailedCardsLevel1, cur.ID); i >= 0 {
			ns.FailedCardsLevel1 = slices.Delete(ns.FailedCardsLevel1, i, i+1)
		}
		if indexOfCard(ns.FailedCardsLevel2, cur.ID) < 0 {
			ns.FailedCardsLevel2 = append(ns.FailedCardsLevel2, cur)
		}
		advance(&ns, a.NextSeed)
		return ns

	default:
		return s
	}
}

// advance promotes the pre-fetched card and draws a replacement. One
// draw happens per action, so a single seed covers it.
func advance(ns *State, seed float64) {
	ns.Current = ns.Next
	ns.Next = nil
	if ns.Current == nil {
		ns.Current = draw(ns, seed)
	} else {
		ns.Next = draw(ns, seed)
	}
	if ns.Current == nil {
		ns.Phase = PhaseComplete
	} else {
		ns.Phase = PhaseQuestion
	}
}

// draw picks a card for presentation. The heap is preferred and the
// pick leaves it; once the heap runs dry, failed cards are re-served in
// place, staying in their queue until actually passed.
func draw(ns *State, seed float64) *core.Card {
	if len(ns.Heap) > 0 {
		i := pickIndex(seed, len(ns.Heap))
		c := ns.Heap[i]
		ns.Heap = slices.Delete(ns.Heap, i, i+1)
		return &c
	}

	exclude := make(map[string]struct{}, 2)
	if ns.Current != nil {
		exclude[ns.Current.ID] = struct{}{}
	}
	if ns.Next != nil {
		exclude[ns.Next.ID] = struct{}{}
	}

	var candidates []core.Card
	for _, c := range ns.FailedCardsLevel2 {
		if _, skip := exclude[c.ID]; !skip {
			candidates = append(candidates, c)
		}
	}
	for _, c := range ns.FailedCardsLevel1 {
		if _, skip := exclude[c.ID]; !skip {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	c := candidates[pickIndex(seed, len(candidates))]
	return &c
}

func clone(s State) State {
	ns := s
	ns.Heap = slices.Clone(s.Heap)
	ns.FailedCardsLevel1 = slices.Clone(s.FailedCardsLevel1)
	ns.FailedCardsLevel2 = slices.Clone(s.FailedCardsLevel2)
	ns.History = slices.Clone(s.History)
	return ns
}
