// Card is the central entity of the domain.
package core

import (
	"fmt"
	"time"
)

// Progress is the review scheduling state for one card.
// Level is the spacing interval in days until the card is next due;
// zero means the card has never been reviewed.
type Progress struct {
	Level    int
	Reviewed *time.Time // nil means never reviewed
}

// Card is the joined question/answer/progress entity exposed to the
// application. Its two storage halves share the same identifier suffix.
type Card struct {
	ID       string
	Question string
	Answer   string
	Keywords []string
	Tags     []string
	Starred  bool
	Created  time.Time
	Modified time.Time
	Progress Progress
}

// Note is the sibling entity to Card: free-form content with keywords.
// It follows the same storage patterns but has a single record half.
type Note struct {
	ID       string
	Content  string
	Keywords []string
	Created  time.Time
	Modified time.Time
}

// Review is the persisted aggregate for an in-progress review session.
// It survives restarts and replicates, so a session started on one
// device can be resumed on another.
type Review struct {
	MaxCards          int
	MaxNewCards       int
	Completed         int
	NewCardsCompleted int
	History           []string // ids of cards cleared this session
	FailedCardsLevel1 []string
	FailedCardsLevel2 []string
	ReviewTime        time.Time
	Created           time.Time
	Modified          time.Time
}

// CardChange is emitted once per logical card mutation, regardless of
// how many underlying document writes produced it. Card is nil when the
// card was deleted.
type CardChange struct {
	ID   string
	Card *Card
}

// String implements lifecycle.Event.
func (c CardChange) String() string {
	if c.Card == nil {
		return fmt.Sprintf("card %s deleted", c.ID)
	}
	return fmt.Sprintf("card %s changed", c.ID)
}

// NoteChange is emitted when a note is written or deleted.
type NoteChange struct {
	ID   string
	Note *Note
}

// String implements lifecycle.Event.
func (c NoteChange) String() string {
	if c.Note == nil {
		return fmt.Sprintf("note %s deleted", c.ID)
	}
	return fmt.Sprintf("note %s changed", c.ID)
}

// ReviewChange is emitted when the review aggregate is written or
// deleted. Review is nil when the session record was removed.
type ReviewChange struct {
	Review *Review
}

// String implements lifecycle.Event.
func (c ReviewChange) String() string {
	if c.Review == nil {
		return "review finished"
	}
	return "review changed"
}
