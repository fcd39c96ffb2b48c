package sync_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/birchill/10sai-sub003/pkg/adapters/docdb"
	"github.com/birchill/10sai-sub003/pkg/core"
	syncpkg "github.com/birchill/10sai-sub003/pkg/sync"
)

// dirOpener treats the server name as a directory path, the way the
// platform wires local file targets.
func dirOpener(ctx context.Context, server syncpkg.Server) (core.Replica, error) {
	return docdb.Open(docdb.Config{Path: server.Name})
}

func setupEngine(t *testing.T) (*syncpkg.Engine, *docdb.Store, context.Context) {
	t.Helper()

	local, err := docdb.Open(docdb.Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	engine := syncpkg.NewEngine(local, dirOpener, syncpkg.Config{
		PollInterval: 25 * time.Millisecond,
		BatchSize:    10,
	})
	engine.Start(ctx)
	t.Cleanup(engine.Stop)
	return engine, local, ctx
}

func awaitIdle(t *testing.T, idle <-chan struct{}) {
	t.Helper()
	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync to go idle")
	}
}

func TestEngineRequiresStart(t *testing.T) {
	local, err := docdb.Open(docdb.Config{Path: t.TempDir()})
	require.NoError(t, err)
	defer local.Close()

	engine := syncpkg.NewEngine(local, dirOpener, syncpkg.Config{})
	err = engine.SetServer(syncpkg.Server{Name: t.TempDir()}, syncpkg.Callbacks{})
	require.Error(t, err)
}

func TestEngineInitialSync(t *testing.T) {
	engine, local, ctx := setupEngine(t)
	remoteDir := t.TempDir()

	// Seed one document on each side before connecting.
	_, err := local.Put(ctx, core.Document{ID: "card-local", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)

	seed, err := docdb.Open(docdb.Config{Path: remoteDir})
	require.NoError(t, err)
	_, err = seed.Put(ctx, core.Document{ID: "card-remote", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	idle := make(chan struct{}, 16)
	var (
		mu        sync.Mutex
		fractions []*float64
	)
	require.NoError(t, engine.SetServer(syncpkg.Server{Name: remoteDir}, syncpkg.Callbacks{
		OnProgress: func(f *float64) {
			mu.Lock()
			fractions = append(fractions, f)
			mu.Unlock()
		},
		OnIdle: func() { idle <- struct{}{} },
	}))
	require.Equal(t, syncpkg.StatusInProgress, engine.Status())

	awaitIdle(t, idle)
	require.Equal(t, syncpkg.StatusOK, engine.Status())

	// Both sides hold both documents.
	_, err = local.Get(ctx, "card-remote")
	require.NoError(t, err)

	engine.Stop()
	require.Equal(t, syncpkg.StatusPaused, engine.Status())

	remote, err := docdb.Open(docdb.Config{Path: remoteDir})
	require.NoError(t, err)
	defer remote.Close()
	_, err = remote.Get(ctx, "card-local")
	require.NoError(t, err)

	// The bounded initial sync ends with an indeterminate marker.
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, fractions)
	require.Nil(t, fractions[len(fractions)-1])
}

func TestEngineSteadyStatePolling(t *testing.T) {
	engine, local, ctx := setupEngine(t)
	remoteDir := t.TempDir()

	idle := make(chan struct{}, 16)
	require.NoError(t, engine.SetServer(syncpkg.Server{Name: remoteDir}, syncpkg.Callbacks{
		OnIdle: func() { idle <- struct{}{} },
	}))
	awaitIdle(t, idle)

	// A write landing after the initial sync is picked up by polling.
	_, err := local.Put(ctx, core.Document{ID: "card-late", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	awaitIdle(t, idle)

	engine.Stop()
	remote, err := docdb.Open(docdb.Config{Path: remoteDir})
	require.NoError(t, err)
	defer remote.Close()
	_, err = remote.Get(ctx, "card-late")
	require.NoError(t, err)
}

func TestEngineSetServer(t *testing.T) {
	engine, _, _ := setupEngine(t)
	remoteDir := t.TempDir()

	idle := make(chan struct{}, 16)
	require.NoError(t, engine.SetServer(syncpkg.Server{Name: remoteDir}, syncpkg.Callbacks{
		OnIdle: func() { idle <- struct{}{} },
	}))
	awaitIdle(t, idle)

	t.Run("Equal Server Is A NoOp", func(t *testing.T) {
		require.NoError(t, engine.SetServer(syncpkg.Server{Name: "  " + remoteDir + "  "}, syncpkg.Callbacks{}))
		require.Equal(t, remoteDir, engine.Server().Name)
	})

	t.Run("Blank Server Disconnects", func(t *testing.T) {
		require.NoError(t, engine.SetServer(syncpkg.Server{}, syncpkg.Callbacks{}))
		require.Equal(t, syncpkg.StatusNotConfigured, engine.Status())
	})
}

func TestEnginePauseAndResume(t *testing.T) {
	engine, local, ctx := setupEngine(t)
	remoteDir := t.TempDir()

	idle := make(chan struct{}, 16)
	require.NoError(t, engine.SetServer(syncpkg.Server{Name: remoteDir}, syncpkg.Callbacks{
		OnIdle: func() { idle <- struct{}{} },
	}))
	awaitIdle(t, idle)

	engine.Pause()
	require.Equal(t, syncpkg.StatusPaused, engine.Status())

	// Writes made while paused flow once resumed.
	_, err := local.Put(ctx, core.Document{ID: "card-paused", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)

	engine.Resume()
	awaitIdle(t, idle)

	engine.Stop()
	remote, err := docdb.Open(docdb.Config{Path: remoteDir})
	require.NoError(t, err)
	defer remote.Close()
	_, err = remote.Get(ctx, "card-paused")
	require.NoError(t, err)
}

func TestEngineOffline(t *testing.T) {
	engine, _, _ := setupEngine(t)
	remoteDir := t.TempDir()

	idle := make(chan struct{}, 16)
	require.NoError(t, engine.SetServer(syncpkg.Server{Name: remoteDir}, syncpkg.Callbacks{
		OnIdle: func() { idle <- struct{}{} },
	}))
	awaitIdle(t, idle)

	engine.GoOffline()
	require.Equal(t, syncpkg.StatusOffline, engine.Status())

	engine.GoOnline()
	awaitIdle(t, idle)
	require.Equal(t, syncpkg.StatusOK, engine.Status())
}
