package core

import (
	"context"
	"encoding/json"
)

// Document is the unit the storage engine deals in: an opaque JSON body
// plus revision metadata. Revisions take the form "<generation>-<token>"
// and the generation increments on every write, including deletion.
type Document struct {
	ID      string
	Rev     string
	Deleted bool
	Data    json.RawMessage
}

// QueryOptions narrows an index query. StartKey and EndKey are
// inclusive bounds on the index key; nil means unbounded. A Limit of
// zero means no limit.
type QueryOptions struct {
	StartKey   *float64
	EndKey     *float64
	Limit      int
	Descending bool
}

// Row is a single index query result.
type Row struct {
	ID  string
	Key float64
	Doc Document
}

// MapFunc derives an index key from a document. Returning false omits
// the document from the index.
type MapFunc func(doc Document) (key float64, emit bool)

// Change is one entry in the storage change feed. Seq increases
// monotonically per store; Doc is the post-change document, which
// carries the Deleted marker for tombstones.
type Change struct {
	Seq uint64
	Doc Document
}

// String implements lifecycle.Event.
func (c Change) String() string {
	return c.Doc.ID
}

// Storage is the contract the card store consumes: a keyed document
// store with revision-checked writes, materialized map-indexes, and a
// change feed.
//
// Adhering to this interface keeps the store independent of the
// underlying engine (local files, in-memory test double, etc).
type Storage interface {
	// Get retrieves a live document. Tombstones report ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)

	// Stat retrieves a document including tombstones. Only documents
	// that never existed report ErrNotFound.
	Stat(ctx context.Context, id string) (Document, error)

	// Put writes a document. doc.Rev must match the stored revision, or
	// be empty when the document does not yet exist (tombstones count as
	// absent). Returns the new revision; mismatches return ErrConflict.
	Put(ctx context.Context, doc Document) (string, error)

	// Delete writes a tombstone for the given revision. Returns the
	// tombstone revision; a stale rev returns ErrConflict.
	Delete(ctx context.Context, id, rev string) (string, error)

	// Upsert runs a read-modify-retry loop. The mutator receives the
	// current document, or nil if absent, and returns the replacement
	// body. Returning ErrNoChange skips the write and returns the
	// current document unmodified; any other error aborts the loop.
	Upsert(ctx context.Context, id string, mutate func(current *Document) (json.RawMessage, error)) (Document, error)

	// PutView registers a materialized index. Registering the same name
	// with an identical version is a no-op; a differing version drops
	// and rebuilds the index.
	PutView(name, version string, fn MapFunc) error

	// Query reads from a materialized index, ascending by key unless
	// Descending is set. It suspends until the index is built.
	Query(ctx context.Context, view string, opts QueryOptions) ([]Row, error)

	// AllDocs returns the live documents whose ids match the glob
	// pattern, in id order.
	AllDocs(ctx context.Context, pattern string) ([]Document, error)

	// Sequence reports the current change-feed sequence. Subscribing
	// from it yields live changes only.
	Sequence(ctx context.Context) (uint64, error)

	// Changes subscribes to the change feed, replaying entries after
	// the given sequence first. Only documents whose ids match the glob
	// pattern are delivered. The channel closes when ctx is done.
	Changes(ctx context.Context, pattern string, since uint64) (<-chan Change, error)

	Close() error
}

// ConflictResolver picks the winner between an incoming replicated
// document and the locally stored one.
type ConflictResolver func(incoming, current Document) Document

// Replica is the surface replication needs from a store on either side
// of a sync connection.
type Replica interface {
	// ID identifies this replica for checkpointing purposes. It is
	// stable across restarts.
	ID() string

	// Sequence reports the current change-feed sequence.
	Sequence(ctx context.Context) (uint64, error)

	// ChangesSince returns up to limit changes after seq along with the
	// last sequence covered, including tombstones.
	ChangesSince(ctx context.Context, seq uint64, limit int) ([]Change, uint64, error)

	// Apply writes replicated documents wholesale, preserving their
	// revisions. Conflicts are settled by the replica's registered
	// resolvers; an incoming document identical to the stored one is
	// skipped without emitting a change event.
	Apply(ctx context.Context, docs []Document) error

	// Checkpoint reports how far this replica has consumed the peer's
	// change feed.
	Checkpoint(ctx context.Context, peerID string) (uint64, error)

	// SetCheckpoint durably records the consumed peer sequence.
	SetCheckpoint(ctx context.Context, peerID string, seq uint64) error
}
