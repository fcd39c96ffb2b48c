package docdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// watchWorker reconciles out-of-band edits to the store directory into
// the change feed. A write made by another process (or a manual edit)
// shows up as a normal change; the store's own writes are suppressed by
// comparing the file's revision against memory.
type watchWorker struct {
	*worker.BaseWorker
	store     *Store
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(store *Store) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("docdb-watcher"),
		store:      store,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.store.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch store directory: %w", err)
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(50 * time.Millisecond)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

func (w *watchWorker) run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.debouncer.stopAndWait(5 * time.Second)
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if w.shouldIgnore(event) {
				continue
			}
			path := event.Name
			w.debouncer.add(path, func() {
				w.reconcile(path)
			})

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			if w.store.config.Logger != nil {
				w.store.config.Logger.Error("fsnotify error", "error", wErr)
			}
			if w.store.config.ErrorHandler != nil {
				w.store.config.ErrorHandler(wErr)
			}
		}
	}
}

func (w *watchWorker) shouldIgnore(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, TempFilePrefix) {
		return true
	}
	if filepath.Ext(base) != ".json" {
		return true
	}
	// Events under the system directory are state bookkeeping.
	if strings.Contains(event.Name, string(os.PathSeparator)+w.store.config.SystemDir+string(os.PathSeparator)) {
		return true
	}
	return !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename)
}

// reconcile folds the on-disk version of one document back into the
// store if it differs from memory.
func (w *watchWorker) reconcile(path string) {
	id := strings.TrimSuffix(filepath.Base(path), ".json")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		w.reconcileRemoval(id)
		return
	}
	if err != nil {
		if w.store.config.Logger != nil {
			w.store.config.Logger.Warn("failed to read changed file", "path", path, "error", err)
		}
		return
	}

	var df docFile
	if err := json.Unmarshal(data, &df); err != nil {
		if w.store.config.Logger != nil {
			w.store.config.Logger.Warn("ignoring unparseable document file", "path", path, "error", err)
		}
		return
	}
	if df.ID == "" {
		df.ID = id
	}

	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.docs[df.ID]
	if exists && cur.doc.Rev == df.Rev && cur.doc.Deleted == df.Deleted {
		// Our own write landing on disk.
		return
	}

	doc := core.Document{ID: df.ID, Rev: df.Rev, Deleted: df.Deleted, Data: df.Data}
	s.seq++
	entry := docEntry{doc: doc, seq: s.seq}
	if err := s.persistLocked(entry); err != nil {
		s.seq--
		if s.config.Logger != nil {
			s.config.Logger.Error("failed to persist reconciled document", "id", df.ID, "error", err)
		}
		return
	}
	s.docs[df.ID] = entry
	s.updateViewsLocked(doc)
	s.notifyLocked(core.Change{Seq: entry.seq, Doc: doc})

	if s.config.Logger != nil {
		s.config.Logger.Debug("reconciled external change", "id", df.ID)
	}
}

// reconcileRemoval turns an external file deletion into a tombstone so
// subscribers and replication peers observe the removal.
func (w *watchWorker) reconcileRemoval(id string) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.docs[id]
	if !exists || cur.doc.Deleted {
		return
	}

	tomb := core.Document{
		ID:      id,
		Rev:     newRev(revGeneration(cur.doc.Rev) + 1),
		Deleted: true,
	}
	if err := s.commitLocked(tomb); err != nil {
		if s.config.Logger != nil {
			s.config.Logger.Error("failed to record external removal", "id", id, "error", err)
		}
	}
}
