package review_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/birchill/10sai-sub003/pkg/adapters/docdb"
	"github.com/birchill/10sai-sub003/pkg/core"
	"github.com/birchill/10sai-sub003/pkg/review"
	"github.com/birchill/10sai-sub003/pkg/store"
)

var sessionTime = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func setupSelector(t *testing.T) (*review.Selector, *store.CardStore, context.Context) {
	t.Helper()

	db, err := docdb.Open(docdb.Config{Path: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	s := store.New(db, store.Config{
		Clock:      func() time.Time { return sessionTime },
		ReviewTime: sessionTime,
	})
	require.NoError(t, s.Initialize(ctx))

	t.Cleanup(func() {
		s.Close()
		cancel()
		db.Close()
	})

	// A fixed negative seed keeps heap order and draws deterministic.
	sel := review.NewSelector(s, nil, func() float64 { return -1 })
	return sel, s, ctx
}

func seedCards(t *testing.T, s *store.CardStore, ctx context.Context, overdue, fresh int) {
	t.Helper()
	for i := 0; i < overdue; i++ {
		card, err := s.PutCard(ctx, store.CardPatch{Question: strPtr(fmt.Sprintf("overdue-%d", i))})
		require.NoError(t, err)
		level := 1
		reviewed := sessionTime.AddDate(0, 0, -3)
		_, err = s.PutCard(ctx, store.CardPatch{
			ID:       card.ID,
			Progress: &store.ProgressPatch{Level: &level, Reviewed: &reviewed},
		})
		require.NoError(t, err)
	}
	for i := 0; i < fresh; i++ {
		_, err := s.PutCard(ctx, store.CardPatch{Question: strPtr(fmt.Sprintf("new-%d", i))})
		require.NoError(t, err)
	}
}

func strPtr(s string) *string { return &s }

func TestSelectorBegin(t *testing.T) {
	sel, s, ctx := setupSelector(t)
	seedCards(t, s, ctx, 15, 5)

	state, err := sel.Begin(ctx, 10, 2, sessionTime)
	require.NoError(t, err)

	require.Equal(t, review.PhaseQuestion, state.Phase)
	require.Equal(t, 10, state.QuestionsRemaining())
	require.Equal(t, 2, state.NewCardsInPlay())
	require.Equal(t, 0, state.Completed)
	require.Equal(t, 0, state.RepeatQuestionsRemaining())

	// The session is durable from the moment it loads.
	record, err := s.GetReview(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, record.MaxCards)
	require.Equal(t, 2, record.MaxNewCards)
}

func TestSelectorBeginFewCards(t *testing.T) {
	sel, s, ctx := setupSelector(t)
	seedCards(t, s, ctx, 1, 1)

	state, err := sel.Begin(ctx, 10, 2, sessionTime)
	require.NoError(t, err)
	require.Equal(t, 2, state.QuestionsRemaining())
	require.Equal(t, 1, state.NewCardsInPlay())
}

func TestSelectorBeginEmpty(t *testing.T) {
	sel, s, ctx := setupSelector(t)

	state, err := sel.Begin(ctx, 10, 2, sessionTime)
	require.NoError(t, err)
	require.Equal(t, review.PhaseComplete, state.Phase)

	// A completed session leaves no durable record behind.
	_, err = s.GetReview(ctx)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSelectorPassUpdatesProgress(t *testing.T) {
	sel, s, ctx := setupSelector(t)
	seedCards(t, s, ctx, 2, 1)

	state, err := sel.Begin(ctx, 3, 1, sessionTime)
	require.NoError(t, err)
	require.NotNil(t, state.Current)

	passed := *state.Current
	state = sel.Show(state)
	state, err = sel.Pass(ctx, state)
	require.NoError(t, err)
	require.Equal(t, 1, state.Completed)

	got, err := s.GetCard(ctx, passed.ID)
	require.NoError(t, err)
	require.Equal(t, review.NextLevel(passed.Progress.Level, 3), got.Progress.Level)
	require.NotNil(t, got.Progress.Reviewed)
	require.True(t, got.Progress.Reviewed.Equal(sessionTime))
}

func TestSelectorFailResetsProgress(t *testing.T) {
	sel, s, ctx := setupSelector(t)
	seedCards(t, s, ctx, 2, 0)

	state, err := sel.Begin(ctx, 2, 0, sessionTime)
	require.NoError(t, err)
	require.NotNil(t, state.Current)

	failed := *state.Current
	state, err = sel.Fail(ctx, state)
	require.NoError(t, err)
	require.Equal(t, 2, state.RepeatQuestionsRemaining())
	require.Equal(t, 0, state.Completed)

	got, err := s.GetCard(ctx, failed.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.Progress.Level)
	require.NotNil(t, got.Progress.Reviewed)
	require.True(t, got.Progress.Reviewed.Equal(sessionTime))

	// The failure is in the durable record too.
	record, err := s.GetReview(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{failed.ID}, record.FailedCardsLevel2)
}

func TestSelectorResume(t *testing.T) {
	sel, s, ctx := setupSelector(t)
	seedCards(t, s, ctx, 4, 0)

	state, err := sel.Begin(ctx, 3, 0, sessionTime)
	require.NoError(t, err)

	state, err = sel.Pass(ctx, state)
	require.NoError(t, err)
	failedID := state.Current.ID
	state, err = sel.Fail(ctx, state)
	require.NoError(t, err)

	// A fresh selector (a restart) picks the session back up.
	resumed, err := review.NewSelector(s, nil, func() float64 { return -1 }).Resume(ctx)
	require.NoError(t, err)
	require.Equal(t, state.Completed, resumed.Completed)
	require.Equal(t, 2, resumed.RepeatQuestionsRemaining())
	require.Equal(t, []string{failedID}, cardIDList(resumed.FailedCardsLevel2))
	require.True(t, resumed.ReviewTime.Equal(sessionTime))
	require.Equal(t, review.PhaseQuestion, resumed.Phase)
}

func TestSelectorResumeWithoutReview(t *testing.T) {
	sel, _, ctx := setupSelector(t)
	_, err := sel.Resume(ctx)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSelectorFinish(t *testing.T) {
	sel, s, ctx := setupSelector(t)
	seedCards(t, s, ctx, 2, 0)

	_, err := sel.Begin(ctx, 2, 0, sessionTime)
	require.NoError(t, err)
	require.NoError(t, sel.Finish(ctx))

	_, err = s.GetReview(ctx)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSelectorDrainToCompletion(t *testing.T) {
	sel, s, ctx := setupSelector(t)
	seedCards(t, s, ctx, 3, 0)

	state, err := sel.Begin(ctx, 3, 0, sessionTime)
	require.NoError(t, err)

	for i := 0; state.Phase == review.PhaseQuestion; i++ {
		require.Less(t, i, 10, "session did not converge")
		state = sel.Show(state)
		state, err = sel.Pass(ctx, state)
		require.NoError(t, err)
	}
	require.Equal(t, review.PhaseComplete, state.Phase)
	require.Equal(t, 3, state.Completed)

	_, err = s.GetReview(ctx)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func cardIDList(cards []core.Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}
