package sync

import (
	"github.com/aretw0/introspection"
)

// EngineState exposes internal state for observability. Credentials
// never leave the engine.
type EngineState struct {
	Status      string `json:"status"`
	Server      string `json:"server,omitempty"`
	Generation  uint64 `json:"generation"`
	Replicating bool   `json:"replicating"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineState{
		Status:      e.status.String(),
		Server:      e.server.Name,
		Generation:  e.generation,
		Replicating: e.worker != nil,
	}
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "syncengine"
}

var _ introspection.Introspectable = (*Engine)(nil)
var _ introspection.Component = (*Engine)(nil)
