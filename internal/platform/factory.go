// Package platform wires the adapters and the domain store together
// behind the root package's constructor.
package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/birchill/10sai-sub003/pkg/adapters/docdb"
	"github.com/birchill/10sai-sub003/pkg/core"
	"github.com/birchill/10sai-sub003/pkg/store"
	syncpkg "github.com/birchill/10sai-sub003/pkg/sync"
)

// New opens (creating if needed) the card store at the given directory
// and starts its background machinery. The store runs until ctx is
// done or Close is called.
func New(ctx context.Context, path string, opts ...Option) (*store.CardStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	db := o.storage
	if db == nil {
		var err error
		db, err = docdb.Open(docdb.Config{
			Path:      path,
			SystemDir: o.systemDir,
			Logger:    o.logger,
			Watch:     o.watch,
		})
		if err != nil {
			return nil, err
		}
	}

	s := store.New(db, store.Config{
		Logger:        o.logger,
		Clock:         o.clock,
		ReviewTime:    o.reviewTime,
		AutoSaveDelay: o.autoSaveDelay,
	})
	if err := s.Initialize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReplica resolves a sync server into a replication peer. The
// server name is a directory path (optionally a file:// URL) holding
// another store of the same layout.
func OpenReplica(ctx context.Context, server syncpkg.Server) (core.Replica, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	name := strings.TrimSpace(server.Name)
	name = strings.TrimPrefix(name, "file://")
	if name == "" || strings.ContainsRune(name, 0) {
		return nil, fmt.Errorf("server %q: %w", server.Name, core.ErrInvalidServer)
	}
	path, err := filepath.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("server %q: %w", server.Name, core.ErrInvalidServer)
	}

	remote, err := docdb.Open(docdb.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}

	// Both ends resolve review-record conflicts with the same domain
	// rule. Leaving the remote on the engine default would let the two
	// replicas pick different winners and never converge.
	remote.SetConflictResolver(store.ReviewPrefix, store.ReviewConflictResolver)

	return remote, nil
}
