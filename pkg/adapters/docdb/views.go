package docdb

import (
	"context"
	"sort"

	"github.com/aretw0/lifecycle"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// viewStatus tracks index readiness. Queries suspend until viewReady;
// the transition happens once per process per index definition.
type viewStatus int

const (
	viewNotBuilt viewStatus = iota
	viewBuilding
	viewReady
)

type viewRow struct {
	key float64
	id  string
}

type view struct {
	name    string
	version string
	fn      core.MapFunc

	// Guarded by the store mutex.
	status  viewStatus
	rows    []viewRow
	keys    map[string]float64 // current key per doc id
	pending []string           // doc ids written while building

	ready chan struct{}
}

// PutView implements core.Storage. Registering an identical
// (name, version) pair is a no-op so reopening a store does not trigger
// a rebuild storm; a changed version drops and rebuilds the index.
func (s *Store) PutView(name, version string, fn core.MapFunc) error {
	s.mu.Lock()
	if existing, ok := s.views[name]; ok && existing.version == version {
		s.mu.Unlock()
		return nil
	}

	v := &view{
		name:    name,
		version: version,
		fn:      fn,
		keys:    make(map[string]float64),
		ready:   make(chan struct{}),
	}
	s.views[name] = v
	s.mu.Unlock()

	lifecycle.Go(s.ctx, func(ctx context.Context) error {
		s.buildView(v)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		if s.config.ErrorHandler != nil {
			s.config.ErrorHandler(err)
		} else if s.config.Logger != nil {
			s.config.Logger.Error("view build panic", "view", name, "error", err)
		}
	}))

	return nil
}

// buildView computes the initial row set from a snapshot, then replays
// writes that landed during the build before flipping to ready.
func (s *Store) buildView(v *view) {
	s.mu.Lock()
	if s.views[v.name] != v {
		// Superseded by a newer definition before the build started.
		s.mu.Unlock()
		return
	}
	v.status = viewBuilding
	snapshot := make([]core.Document, 0, len(s.docs))
	for _, entry := range s.docs {
		if !entry.doc.Deleted {
			snapshot = append(snapshot, entry.doc)
		}
	}
	s.mu.Unlock()

	rows := make([]viewRow, 0, len(snapshot))
	keys := make(map[string]float64, len(snapshot))
	for _, doc := range snapshot {
		if key, emit := v.fn(doc); emit {
			rows = append(rows, viewRow{key: key, id: doc.ID})
			keys[doc.ID] = key
		}
	}
	sortRows(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.views[v.name] != v {
		return
	}

	v.rows = rows
	v.keys = keys
	for _, id := range v.pending {
		if entry, ok := s.docs[id]; ok {
			v.update(entry.doc)
		}
	}
	v.pending = nil
	v.status = viewReady
	close(v.ready)

	if s.config.Logger != nil {
		s.config.Logger.Debug("view built", "view", v.name, "rows", len(v.rows))
	}
}

// updateViewsLocked incrementally maintains all indexes after a write.
// Callers hold the store mutex.
func (s *Store) updateViewsLocked(doc core.Document) {
	for _, v := range s.views {
		switch v.status {
		case viewReady:
			v.update(doc)
		default:
			v.pending = append(v.pending, doc.ID)
		}
	}
}

// update recomputes a single document's row. Callers hold the store mutex.
func (v *view) update(doc core.Document) {
	if oldKey, ok := v.keys[doc.ID]; ok {
		v.removeRow(oldKey, doc.ID)
		delete(v.keys, doc.ID)
	}

	if doc.Deleted {
		return
	}
	key, emit := v.fn(doc)
	if !emit {
		return
	}

	i := sort.Search(len(v.rows), func(i int) bool {
		return !rowLess(v.rows[i], viewRow{key: key, id: doc.ID})
	})
	v.rows = append(v.rows, viewRow{})
	copy(v.rows[i+1:], v.rows[i:])
	v.rows[i] = viewRow{key: key, id: doc.ID}
	v.keys[doc.ID] = key
}

func (v *view) removeRow(key float64, id string) {
	i := sort.Search(len(v.rows), func(i int) bool {
		return !rowLess(v.rows[i], viewRow{key: key, id: id})
	})
	if i < len(v.rows) && v.rows[i].id == id {
		v.rows = append(v.rows[:i], v.rows[i+1:]...)
	}
}

// rowLess orders rows ascending by key, ties broken by plain byte
// comparison of the doc id.
func rowLess(a, b viewRow) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.id < b.id
}

func sortRows(rows []viewRow) {
	sort.Slice(rows, func(i, j int) bool { return rowLess(rows[i], rows[j]) })
}

// Query implements core.Storage. It suspends until the index is ready;
// identical subsequent queries do not re-block.
func (s *Store) Query(ctx context.Context, name string, opts core.QueryOptions) ([]core.Row, error) {
	s.mu.RLock()
	v, ok := s.views[name]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}

	select {
	case <-v.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Row
	appendRow := func(r viewRow) bool {
		if opts.StartKey != nil && r.key < *opts.StartKey {
			return true
		}
		if opts.EndKey != nil && r.key > *opts.EndKey {
			return true
		}
		entry, ok := s.docs[r.id]
		if !ok || entry.doc.Deleted {
			return true
		}
		out = append(out, core.Row{ID: r.id, Key: r.key, Doc: entry.doc})
		return opts.Limit == 0 || len(out) < opts.Limit
	}

	if opts.Descending {
		for i := len(v.rows) - 1; i >= 0; i-- {
			if !appendRow(v.rows[i]) {
				break
			}
		}
	} else {
		for _, r := range v.rows {
			if !appendRow(r) {
				break
			}
		}
	}

	return out, nil
}
