package platform_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/birchill/10sai-sub003/internal/platform"
	"github.com/birchill/10sai-sub003/pkg/adapters/docdb"
	"github.com/birchill/10sai-sub003/pkg/core"
	"github.com/birchill/10sai-sub003/pkg/store"
	syncpkg "github.com/birchill/10sai-sub003/pkg/sync"
)

func TestOpenReplicaRejectsBadServers(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"", "   ", "file://"} {
		_, err := platform.OpenReplica(ctx, syncpkg.Server{Name: name})
		require.ErrorIs(t, err, core.ErrInvalidServer, "server %q", name)
	}
}

func reviewBody(created, modified int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"maxCards":10,"maxNewCards":2,"completed":0,"newCardsCompleted":0,"reviewTime":0,"created":%d,"modified":%d}`,
		created, modified))
}

func TestReplicaReviewConflictsConverge(t *testing.T) {
	ctx := context.Background()
	remoteDir := t.TempDir()

	// A review session started earlier on this side...
	local, err := docdb.Open(docdb.Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	local.SetConflictResolver(store.ReviewPrefix, store.ReviewConflictResolver)
	_, err = local.Put(ctx, core.Document{ID: store.ReviewKey, Data: reviewBody(100, 150)})
	require.NoError(t, err)

	// ...competes with a later-started session on the other side that
	// has seen more writes. The engine's generation rule would keep this
	// one; the review rule must settle on the older session at both ends.
	seed, err := docdb.Open(docdb.Config{Path: remoteDir})
	require.NoError(t, err)
	rev, err := seed.Put(ctx, core.Document{ID: store.ReviewKey, Data: reviewBody(200, 250)})
	require.NoError(t, err)
	_, err = seed.Put(ctx, core.Document{ID: store.ReviewKey, Rev: rev, Data: reviewBody(200, 300)})
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	engine := syncpkg.NewEngine(local, platform.OpenReplica, syncpkg.Config{
		PollInterval: 25 * time.Millisecond,
		BatchSize:    10,
	})
	engine.Start(ctx)
	t.Cleanup(engine.Stop)

	idle := make(chan struct{}, 16)
	require.NoError(t, engine.SetServer(syncpkg.Server{Name: remoteDir}, syncpkg.Callbacks{
		OnIdle: func() { idle <- struct{}{} },
	}))
	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync to go idle")
	}
	engine.Stop()

	remote, err := docdb.Open(docdb.Config{Path: remoteDir})
	require.NoError(t, err)
	defer remote.Close()

	localDoc, err := local.Get(ctx, store.ReviewKey)
	require.NoError(t, err)
	remoteDoc, err := remote.Get(ctx, store.ReviewKey)
	require.NoError(t, err)

	require.JSONEq(t, string(localDoc.Data), string(remoteDoc.Data))
	var rec struct {
		Created int64 `json:"created"`
	}
	require.NoError(t, json.Unmarshal(localDoc.Data, &rec))
	require.EqualValues(t, 100, rec.Created)
}
