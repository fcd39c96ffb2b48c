package docdb

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path          string   `json:"path"`
	ReplicaID     string   `json:"replica_id"`
	Documents     int      `json:"documents"`
	Sequence      uint64   `json:"sequence"`
	Views         []string `json:"views,omitempty"`
	Subscribers   int      `json:"subscribers"`
	WatcherActive bool     `json:"watcher_active"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]string, 0, len(s.views))
	for name := range s.views {
		views = append(views, name)
	}

	return StoreState{
		Path:          s.Path,
		ReplicaID:     s.state.ID,
		Documents:     len(s.docs),
		Sequence:      s.seq,
		Views:         views,
		Subscribers:   len(s.subs),
		WatcherActive: s.watcher != nil,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "docdb"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
