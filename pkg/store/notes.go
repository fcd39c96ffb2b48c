package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// NotePatch is a partial update to a note. An empty ID means "create".
type NotePatch struct {
	ID       string
	Content  *string
	Keywords []string
}

// PutNote creates or updates a note.
func (s *CardStore) PutNote(ctx context.Context, patch NotePatch) (core.Note, error) {
	if patch.ID == "" {
		return s.createNote(ctx, patch)
	}
	return s.updateNote(ctx, patch)
}

func (s *CardStore) createNote(ctx context.Context, patch NotePatch) (core.Note, error) {
	now := s.clock().UTC()
	rec := noteRecord{
		Content:  deref(patch.Content),
		Keywords: trimSlice(patch.Keywords),
		Created:  timeToMillis(now),
		Modified: timeToMillis(now),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to encode note: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return core.Note{}, err
		}

		id := s.ids.Next()
		_, err := s.db.Put(ctx, core.Document{ID: NoteKey(id), Data: data})
		if errors.Is(err, core.ErrConflict) {
			s.logger.Debug("note id collision, regenerating", "id", id)
			continue
		}
		if err != nil {
			return core.Note{}, fmt.Errorf("failed to write note: %w", err)
		}
		return toNote(id, rec), nil
	}
}

func (s *CardStore) updateNote(ctx context.Context, patch NotePatch) (core.Note, error) {
	id := patch.ID
	now := s.clock().UTC()

	doc, err := s.db.Upsert(ctx, NoteKey(id), func(cur *core.Document) (json.RawMessage, error) {
		if cur == nil {
			return nil, core.ErrNotFound
		}
		rec, err := decodeNoteRecord(cur.Data)
		if err != nil {
			return nil, err
		}
		changed := false
		if patch.Content != nil && rec.Content != *patch.Content {
			rec.Content = *patch.Content
			changed = true
		}
		if patch.Keywords != nil && !slices.Equal(normalizeSlice(rec.Keywords), patch.Keywords) {
			rec.Keywords = trimSlice(patch.Keywords)
			changed = true
		}
		if !changed {
			return nil, core.ErrNoChange
		}
		rec.Modified = timeToMillis(now)
		return json.Marshal(rec)
	})
	if err != nil {
		return core.Note{}, fmt.Errorf("note %s: %w", id, err)
	}

	rec, err := decodeNoteRecord(doc.Data)
	if err != nil {
		return core.Note{}, fmt.Errorf("note %s: %w", id, err)
	}
	return toNote(id, rec), nil
}

// GetNote retrieves a note by id.
func (s *CardStore) GetNote(ctx context.Context, id string) (core.Note, error) {
	doc, err := s.db.Get(ctx, NoteKey(id))
	if err != nil {
		return core.Note{}, fmt.Errorf("note %s: %w", id, err)
	}
	rec, err := decodeNoteRecord(doc.Data)
	if err != nil {
		return core.Note{}, fmt.Errorf("note %s: %w", id, err)
	}
	return toNote(id, rec), nil
}

// GetNotes lists all notes in id (creation) order.
func (s *CardStore) GetNotes(ctx context.Context) ([]core.Note, error) {
	docs, err := s.db.AllDocs(ctx, NotePrefix+"*")
	if err != nil {
		return nil, err
	}
	notes := make([]core.Note, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeNoteRecord(doc.Data)
		if err != nil {
			s.logger.Warn("skipping unparseable note", "id", doc.ID, "error", err)
			continue
		}
		notes = append(notes, toNote(StripNoteKey(doc.ID), rec))
	}
	return notes, nil
}

// NotesForKeywords lists notes sharing at least one keyword with the
// given set, compared case-insensitively.
func (s *CardStore) NotesForKeywords(ctx context.Context, keywords []string) ([]core.Note, error) {
	want := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		want[strings.ToLower(kw)] = struct{}{}
	}

	all, err := s.GetNotes(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Note
	for _, note := range all {
		for _, kw := range note.Keywords {
			if _, ok := want[strings.ToLower(kw)]; ok {
				out = append(out, note)
				break
			}
		}
	}
	return out, nil
}

// DeleteNote removes a note, retrying conflicts and tolerating a
// concurrent deletion.
func (s *CardStore) DeleteNote(ctx context.Context, id string) error {
	if err := s.deleteStubborn(ctx, NoteKey(id)); err != nil {
		return fmt.Errorf("note %s: %w", id, err)
	}
	return nil
}
