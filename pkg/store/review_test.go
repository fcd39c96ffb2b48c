package store_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/birchill/10sai-sub003/pkg/core"
	"github.com/birchill/10sai-sub003/pkg/store"
)

func reviewDoc(rev string, created, modified int64) core.Document {
	data := fmt.Sprintf(`{"maxCards":10,"maxNewCards":2,"completed":0,"newCardsCompleted":0,"reviewTime":0,"created":%d,"modified":%d}`,
		created, modified)
	return core.Document{ID: store.ReviewKey, Rev: rev, Data: json.RawMessage(data)}
}

func TestReviewConflictResolver(t *testing.T) {
	t.Run("Earlier Session Wins", func(t *testing.T) {
		older := reviewDoc("3-aaa", 100, 900)
		newer := reviewDoc("7-bbb", 200, 950)

		if got := store.ReviewConflictResolver(older, newer); got.Rev != older.Rev {
			t.Errorf("expected the older session to win, got %q", got.Rev)
		}
		if got := store.ReviewConflictResolver(newer, older); got.Rev != older.Rev {
			t.Errorf("expected the older session to win either way, got %q", got.Rev)
		}
	})

	t.Run("Same Session Latest State Wins", func(t *testing.T) {
		stale := reviewDoc("3-aaa", 100, 500)
		fresh := reviewDoc("2-bbb", 100, 600)

		if got := store.ReviewConflictResolver(stale, fresh); got.Rev != fresh.Rev {
			t.Errorf("expected the fresher state to win, got %q", got.Rev)
		}
		if got := store.ReviewConflictResolver(fresh, stale); got.Rev != fresh.Rev {
			t.Errorf("expected the fresher state to win either way, got %q", got.Rev)
		}
	})

	t.Run("Tombstone Falls Back To Revision Rule", func(t *testing.T) {
		live := reviewDoc("2-aaa", 100, 500)
		tombstone := core.Document{ID: store.ReviewKey, Rev: "5-bbb", Deleted: true}

		if got := store.ReviewConflictResolver(live, tombstone); got.Rev != tombstone.Rev {
			t.Errorf("expected higher generation to win, got %q", got.Rev)
		}
	})

	t.Run("Unparseable Falls Back To Revision Rule", func(t *testing.T) {
		garbage := core.Document{ID: store.ReviewKey, Rev: "4-aaa", Data: json.RawMessage(`{]`)}
		live := reviewDoc("4-bbb", 100, 500)

		if got := store.ReviewConflictResolver(garbage, live); got.Rev != live.Rev {
			t.Errorf("expected greater revision string to win the tie, got %q", got.Rev)
		}
	})
}
