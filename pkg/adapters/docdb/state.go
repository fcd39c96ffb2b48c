package docdb

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// stateFile holds the durable per-store replication state: the store's
// stable identity and how far it has consumed each peer's change feed.
type stateFile struct {
	path string
	mu   sync.Mutex

	ID          string            `json:"id"`
	Checkpoints map[string]uint64 `json:"checkpoints"`
}

// loadState reads the state file, creating a fresh identity when the
// file does not exist yet.
func loadState(path string) (*stateFile, error) {
	st := &stateFile{
		path:        path,
		Checkpoints: make(map[string]uint64),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		st.ID = uuid.NewString()
		if err := st.save(); err != nil {
			return nil, err
		}
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, st); err != nil {
		// Corrupted state self-heals: a new identity just means peers
		// re-checkpoint from zero.
		st.ID = uuid.NewString()
		st.Checkpoints = make(map[string]uint64)
	}
	if st.Checkpoints == nil {
		st.Checkpoints = make(map[string]uint64)
	}
	return st, nil
}

func (st *stateFile) save() error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(st.path, data); err != nil {
		return fmt.Errorf("failed to persist state file: %w", err)
	}
	return nil
}

func (st *stateFile) checkpoint(peerID string) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Checkpoints[peerID]
}

func (st *stateFile) setCheckpoint(peerID string, seq uint64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Checkpoints[peerID] = seq
	return st.save()
}
