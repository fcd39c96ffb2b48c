package store

import (
	"time"

	"github.com/aretw0/introspection"
)

// CardStoreState exposes internal state for observability.
type CardStoreState struct {
	ReviewTime   string `json:"review_time"`
	PendingSaves int    `json:"pending_saves"`
	Storage      any    `json:"storage,omitempty"`
}

// State implements introspection.Introspectable.
func (s *CardStore) State() any {
	state := CardStoreState{
		ReviewTime:   s.ReviewTime().Format(time.RFC3339),
		PendingSaves: s.saver.Pending(),
	}
	if in, ok := s.db.(introspection.Introspectable); ok {
		state.Storage = in.State()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *CardStore) ComponentType() string {
	return "cardstore"
}

var _ introspection.Introspectable = (*CardStore)(nil)
var _ introspection.Component = (*CardStore)(nil)
