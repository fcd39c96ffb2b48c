package store

import "strings"

// Reserved key prefixes partition the storage keyspace. A card's two
// halves share the identifier suffix after their respective prefixes.
const (
	CardPrefix     = "card-"
	ProgressPrefix = "progress-"
	NotePrefix     = "note-"
	ReviewPrefix   = "review-"
)

// ReviewKey is the single review aggregate record.
const ReviewKey = ReviewPrefix + "default"

// CardKey returns the storage key for a card record.
func CardKey(id string) string { return CardPrefix + id }

// ProgressKey returns the storage key for a progress record.
func ProgressKey(id string) string { return ProgressPrefix + id }

// NoteKey returns the storage key for a note record.
func NoteKey(id string) string { return NotePrefix + id }

// StripCardKey is the exact inverse of CardKey.
func StripCardKey(key string) string { return strings.TrimPrefix(key, CardPrefix) }

// StripProgressKey is the exact inverse of ProgressKey.
func StripProgressKey(key string) string { return strings.TrimPrefix(key, ProgressPrefix) }

// StripNoteKey is the exact inverse of NoteKey.
func StripNoteKey(key string) string { return strings.TrimPrefix(key, NotePrefix) }
