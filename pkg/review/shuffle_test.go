package review

import (
	"slices"
	"testing"
)

func TestShuffleWithSeed(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}

	t.Run("Deterministic Permutation", func(t *testing.T) {
		got := ShuffleWithSeed(in, 0.43)
		want := []int{5, 3, 2, 1, 4}
		if !slices.Equal(got, want) {
			t.Errorf("seed 0.43: expected %v, got %v", want, got)
		}
		// The same seed replays the same order.
		again := ShuffleWithSeed(in, 0.43)
		if !slices.Equal(got, again) {
			t.Errorf("expected replay to match, got %v then %v", got, again)
		}
	})

	t.Run("Negative Seed Is Identity", func(t *testing.T) {
		got := ShuffleWithSeed(in, -1)
		if !slices.Equal(got, in) {
			t.Errorf("expected identity order, got %v", got)
		}
	})

	t.Run("Input Is Not Mutated", func(t *testing.T) {
		ShuffleWithSeed(in, 0.77)
		if !slices.Equal(in, []int{1, 2, 3, 4, 5}) {
			t.Errorf("input mutated: %v", in)
		}
	})

	t.Run("Empty And Single", func(t *testing.T) {
		if got := ShuffleWithSeed([]int{}, 0.5); len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
		if got := ShuffleWithSeed([]int{7}, 0.5); !slices.Equal(got, []int{7}) {
			t.Errorf("expected [7], got %v", got)
		}
	})
}
