// Package docdb implements core.Storage as a local, replicable document
// store: one JSON file per document, revision-checked writes, materialized
// map-indexes, and a change feed. It is the offline half of a sync pair;
// see replicate.go for the replication surface.
package docdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// Config holds the configuration for a docdb store.
type Config struct {
	Path         string
	SystemDir    string // hidden state directory, e.g. ".tensai"
	Logger       *slog.Logger
	Watch        bool // reconcile external file edits into the change feed
	ErrorHandler func(error)
}

type docEntry struct {
	doc core.Document
	seq uint64
}

// Store is a file-backed document store. All mutation goes through the
// revision check; there is no other locking discipline for callers.
type Store struct {
	Path   string
	config Config

	mu        sync.RWMutex
	docs      map[string]docEntry
	seq       uint64
	views     map[string]*view
	subs      map[*subscriber]struct{}
	resolvers map[string]core.ConflictResolver // keyed by id prefix

	state *stateFile

	ctx    context.Context
	cancel context.CancelFunc

	watcher *watchWorker
}

// Open loads (or creates) a store at config.Path.
func Open(config Config) (*Store, error) {
	if config.SystemDir == "" {
		config.SystemDir = ".tensai"
	}

	if err := os.MkdirAll(filepath.Join(config.Path, config.SystemDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	state, err := loadState(filepath.Join(config.Path, config.SystemDir, "state.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to load store state: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		Path:      config.Path,
		config:    config,
		docs:      make(map[string]docEntry),
		views:     make(map[string]*view),
		subs:      make(map[*subscriber]struct{}),
		resolvers: make(map[string]core.ConflictResolver),
		state:     state,
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := s.loadDocs(); err != nil {
		cancel()
		return nil, err
	}

	if config.Watch {
		s.watcher = newWatchWorker(s)
		if err := s.watcher.Start(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start watcher: %w", err)
		}
	}

	return s, nil
}

// docFile is the on-disk shape of a single document.
type docFile struct {
	ID      string          `json:"id"`
	Rev     string          `json:"rev"`
	Deleted bool            `json:"deleted,omitempty"`
	Seq     uint64          `json:"seq"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (s *Store) loadDocs() error {
	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return fmt.Errorf("failed to read store directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if strings.HasPrefix(e.Name(), TempFilePrefix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.Path, e.Name()))
		if err != nil {
			return fmt.Errorf("failed to read document file: %w", err)
		}

		var df docFile
		if err := json.Unmarshal(data, &df); err != nil {
			if s.config.Logger != nil {
				s.config.Logger.Warn("skipping unparseable document file", "file", e.Name(), "error", err)
			}
			continue
		}

		s.docs[df.ID] = docEntry{
			doc: core.Document{ID: df.ID, Rev: df.Rev, Deleted: df.Deleted, Data: df.Data},
			seq: df.Seq,
		}
		if df.Seq > s.seq {
			s.seq = df.Seq
		}
	}

	return nil
}

// SetConflictResolver registers a replication conflict resolver for
// documents whose id starts with prefix. The longest matching prefix
// wins; unmatched documents use the default revision-based policy.
func (s *Store) SetConflictResolver(prefix string, fn core.ConflictResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvers[prefix] = fn
}

// Get implements core.Storage.
func (s *Store) Get(ctx context.Context, id string) (core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.docs[id]
	if !ok || entry.doc.Deleted {
		return core.Document{}, core.ErrNotFound
	}
	return entry.doc, nil
}

// Stat implements core.Storage. Unlike Get it returns tombstones.
func (s *Store) Stat(ctx context.Context, id string) (core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.docs[id]
	if !ok {
		return core.Document{}, core.ErrNotFound
	}
	return entry.doc, nil
}

// Put implements core.Storage.
func (s *Store) Put(ctx context.Context, doc core.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.docs[doc.ID]
	switch {
	case exists && !cur.doc.Deleted:
		if doc.Rev != cur.doc.Rev {
			return "", core.ErrConflict
		}
	case exists && cur.doc.Deleted:
		// Writing over a tombstone needs no rev, but a stale one is
		// still a conflict.
		if doc.Rev != "" && doc.Rev != cur.doc.Rev {
			return "", core.ErrConflict
		}
	default:
		if doc.Rev != "" {
			return "", core.ErrConflict
		}
	}

	gen := 0
	if exists {
		gen = revGeneration(cur.doc.Rev)
	}
	rev := newRev(gen + 1)

	written := core.Document{ID: doc.ID, Rev: rev, Data: doc.Data}
	if err := s.commitLocked(written); err != nil {
		return "", err
	}
	return rev, nil
}

// Delete implements core.Storage.
func (s *Store) Delete(ctx context.Context, id, rev string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.docs[id]
	if !exists || cur.doc.Deleted {
		return "", core.ErrNotFound
	}
	if rev != cur.doc.Rev {
		return "", core.ErrConflict
	}

	tombRev := newRev(revGeneration(cur.doc.Rev) + 1)
	tomb := core.Document{ID: id, Rev: tombRev, Deleted: true}
	if err := s.commitLocked(tomb); err != nil {
		return "", err
	}
	return tombRev, nil
}

// Upsert implements core.Storage: a read-modify-retry loop over Put.
func (s *Store) Upsert(ctx context.Context, id string, mutate func(current *core.Document) (json.RawMessage, error)) (core.Document, error) {
	for {
		if err := ctx.Err(); err != nil {
			return core.Document{}, err
		}

		cur, err := s.Stat(ctx, id)
		var curPtr *core.Document
		baseRev := ""
		switch {
		case errors.Is(err, core.ErrNotFound):
			// Absent; mutator sees nil.
		case err != nil:
			return core.Document{}, err
		case cur.Deleted:
			// Tombstone counts as absent for the mutator.
		default:
			curPtr = &cur
			baseRev = cur.Rev
		}

		data, err := mutate(curPtr)
		if errors.Is(err, core.ErrNoChange) {
			if curPtr == nil {
				return core.Document{}, core.ErrNotFound
			}
			return cur, nil
		}
		if err != nil {
			return core.Document{}, err
		}

		rev, err := s.Put(ctx, core.Document{ID: id, Rev: baseRev, Data: data})
		if errors.Is(err, core.ErrConflict) {
			continue
		}
		if err != nil {
			return core.Document{}, err
		}
		return core.Document{ID: id, Rev: rev, Data: data}, nil
	}
}

// AllDocs implements core.Storage.
func (s *Store) AllDocs(ctx context.Context, pattern string) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []core.Document
	for id, entry := range s.docs {
		if entry.doc.Deleted {
			continue
		}
		ok, err := doublestar.Match(pattern, id)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if ok {
			docs = append(docs, entry.doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// commitLocked stores a new document version, persists it, maintains
// views, and notifies subscribers. Callers hold s.mu.
func (s *Store) commitLocked(doc core.Document) error {
	s.seq++
	entry := docEntry{doc: doc, seq: s.seq}

	if err := s.persistLocked(entry); err != nil {
		s.seq--
		return err
	}

	s.docs[doc.ID] = entry
	s.updateViewsLocked(doc)
	s.notifyLocked(core.Change{Seq: entry.seq, Doc: doc})
	return nil
}

func (s *Store) persistLocked(entry docEntry) error {
	df := docFile{
		ID:      entry.doc.ID,
		Rev:     entry.doc.Rev,
		Deleted: entry.doc.Deleted,
		Seq:     entry.seq,
		Data:    entry.doc.Data,
	}
	data, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	path := filepath.Join(s.Path, entry.doc.ID+".json")
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to persist document %s: %w", entry.doc.ID, err)
	}
	return nil
}

// Close stops the watcher and all subscriptions.
func (s *Store) Close() error {
	s.cancel()
	if s.watcher != nil {
		return s.watcher.Stop(context.Background())
	}
	return nil
}

// --- Revisions ---

// newRev builds a revision marker "<generation>-<token>".
func newRev(gen int) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strconv.Itoa(gen) + "-" + token
}

func revGeneration(rev string) int {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	gen, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return gen
}

var _ core.Storage = (*Store)(nil)
