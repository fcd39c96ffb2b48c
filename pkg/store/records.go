package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// Stored record shapes. Timestamps are milliseconds since the Unix
// epoch; optional array fields are omitted entirely when empty so a
// record round-trips without accumulating noise.

type cardRecord struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Starred  bool     `json:"starred,omitempty"`
	Created  int64    `json:"created"`
	Modified int64    `json:"modified"`
}

type progressRecord struct {
	Level    int    `json:"level"`
	Reviewed *int64 `json:"reviewed"`
}

type noteRecord struct {
	Content  string   `json:"content"`
	Keywords []string `json:"keywords,omitempty"`
	Created  int64    `json:"created"`
	Modified int64    `json:"modified"`
}

type reviewRecord struct {
	MaxCards          int      `json:"maxCards"`
	MaxNewCards       int      `json:"maxNewCards"`
	Completed         int      `json:"completed"`
	NewCardsCompleted int      `json:"newCardsCompleted"`
	History           []string `json:"history,omitempty"`
	FailedCardsLevel1 []string `json:"failedCardsLevel1,omitempty"`
	FailedCardsLevel2 []string `json:"failedCardsLevel2,omitempty"`
	ReviewTime        int64    `json:"reviewTime"`
	Created           int64    `json:"created"`
	Modified          int64    `json:"modified"`
}

func timeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func decodeCardRecord(data json.RawMessage) (cardRecord, error) {
	var rec cardRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return cardRecord{}, fmt.Errorf("failed to parse card record: %w", err)
	}
	return rec, nil
}

func decodeProgressRecord(data json.RawMessage) (progressRecord, error) {
	var rec progressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return progressRecord{}, fmt.Errorf("failed to parse progress record: %w", err)
	}
	return rec, nil
}

func decodeNoteRecord(data json.RawMessage) (noteRecord, error) {
	var rec noteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return noteRecord{}, fmt.Errorf("failed to parse note record: %w", err)
	}
	return rec, nil
}

func decodeReviewRecord(data json.RawMessage) (reviewRecord, error) {
	var rec reviewRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return reviewRecord{}, fmt.Errorf("failed to parse review record: %w", err)
	}
	return rec, nil
}

// toCard joins the two stored halves into the client form, normalizing
// optional arrays to empty slices.
func toCard(id string, cr cardRecord, pr progressRecord) core.Card {
	card := core.Card{
		ID:       id,
		Question: cr.Question,
		Answer:   cr.Answer,
		Keywords: normalizeSlice(cr.Keywords),
		Tags:     normalizeSlice(cr.Tags),
		Starred:  cr.Starred,
		Created:  millisToTime(cr.Created),
		Modified: millisToTime(cr.Modified),
		Progress: core.Progress{Level: pr.Level},
	}
	if pr.Reviewed != nil {
		t := millisToTime(*pr.Reviewed)
		card.Progress.Reviewed = &t
	}
	return card
}

func toNote(id string, nr noteRecord) core.Note {
	return core.Note{
		ID:       id,
		Content:  nr.Content,
		Keywords: normalizeSlice(nr.Keywords),
		Created:  millisToTime(nr.Created),
		Modified: millisToTime(nr.Modified),
	}
}

func toReview(rr reviewRecord) core.Review {
	return core.Review{
		MaxCards:          rr.MaxCards,
		MaxNewCards:       rr.MaxNewCards,
		Completed:         rr.Completed,
		NewCardsCompleted: rr.NewCardsCompleted,
		History:           normalizeSlice(rr.History),
		FailedCardsLevel1: normalizeSlice(rr.FailedCardsLevel1),
		FailedCardsLevel2: normalizeSlice(rr.FailedCardsLevel2),
		ReviewTime:        millisToTime(rr.ReviewTime),
		Created:           millisToTime(rr.Created),
		Modified:          millisToTime(rr.Modified),
	}
}

func fromReview(rv core.Review) reviewRecord {
	return reviewRecord{
		MaxCards:          rv.MaxCards,
		MaxNewCards:       rv.MaxNewCards,
		Completed:         rv.Completed,
		NewCardsCompleted: rv.NewCardsCompleted,
		History:           trimSlice(rv.History),
		FailedCardsLevel1: trimSlice(rv.FailedCardsLevel1),
		FailedCardsLevel2: trimSlice(rv.FailedCardsLevel2),
		ReviewTime:        timeToMillis(rv.ReviewTime),
		Created:           timeToMillis(rv.Created),
		Modified:          timeToMillis(rv.Modified),
	}
}

// normalizeSlice maps an absent array to an empty one so callers never
// see nil.
func normalizeSlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// trimSlice maps an empty array to nil so omitempty drops it from the
// stored record.
func trimSlice(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return in
}
