package docdb_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/birchill/10sai-sub003/pkg/adapters/docdb"
	"github.com/birchill/10sai-sub003/pkg/core"
)

func scoreView(doc core.Document) (float64, bool) {
	var body struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(doc.Data, &body); err != nil || body.Score == nil {
		return 0, false
	}
	return *body.Score, true
}

func putScored(t *testing.T, s *docdb.Store, id string, score float64) {
	t.Helper()
	data := json.RawMessage(fmt.Sprintf(`{"score":%g}`, score))
	if _, err := s.Put(context.Background(), core.Document{ID: id, Data: data}); err != nil {
		t.Fatalf("Put %s failed: %v", id, err)
	}
}

func TestQuery(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	putScored(t, s, "progress-a", 3)
	putScored(t, s, "progress-b", 1)
	putScored(t, s, "progress-c", 2)

	if err := s.PutView("scores", "1", scoreView); err != nil {
		t.Fatalf("PutView failed: %v", err)
	}

	t.Run("Ascending By Key", func(t *testing.T) {
		rows, err := s.Query(ctx, "scores", core.QueryOptions{})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		want := []string{"progress-b", "progress-c", "progress-a"}
		if len(rows) != len(want) {
			t.Fatalf("expected %d rows, got %d", len(want), len(rows))
		}
		for i, id := range want {
			if rows[i].ID != id {
				t.Errorf("row %d: expected %s, got %s", i, id, rows[i].ID)
			}
		}
	})

	t.Run("Inclusive Bounds", func(t *testing.T) {
		start, end := 1.0, 2.0
		rows, err := s.Query(ctx, "scores", core.QueryOptions{StartKey: &start, EndKey: &end})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(rows) != 2 || rows[0].ID != "progress-b" || rows[1].ID != "progress-c" {
			t.Errorf("unexpected rows: %+v", rows)
		}
	})

	t.Run("Descending With Limit", func(t *testing.T) {
		rows, err := s.Query(ctx, "scores", core.QueryOptions{Descending: true, Limit: 1})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(rows) != 1 || rows[0].ID != "progress-a" {
			t.Errorf("unexpected rows: %+v", rows)
		}
	})

	t.Run("Tracks Later Writes", func(t *testing.T) {
		putScored(t, s, "progress-d", 0.5)
		rows, err := s.Query(ctx, "scores", core.QueryOptions{Limit: 1})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(rows) != 1 || rows[0].ID != "progress-d" {
			t.Errorf("expected new lowest-key row first, got %+v", rows)
		}
	})
}

func TestPutViewVersioning(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	putScored(t, s, "progress-a", 1)

	if err := s.PutView("scores", "1", scoreView); err != nil {
		t.Fatalf("PutView failed: %v", err)
	}
	// Same name and version is a no-op.
	if err := s.PutView("scores", "1", scoreView); err != nil {
		t.Fatalf("idempotent PutView failed: %v", err)
	}

	// A new version swaps the definition; results follow it.
	doubled := func(doc core.Document) (float64, bool) {
		k, ok := scoreView(doc)
		return k * 2, ok
	}
	if err := s.PutView("scores", "2", doubled); err != nil {
		t.Fatalf("PutView v2 failed: %v", err)
	}
	rows, err := s.Query(ctx, "scores", core.QueryOptions{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Key != 2 {
		t.Errorf("expected rebuilt key 2, got %+v", rows)
	}
}
