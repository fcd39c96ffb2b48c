package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// Status is the externally visible sync state, feeding the persistent
// status indicator.
type Status int

const (
	StatusNotConfigured Status = iota
	StatusInProgress
	StatusOK
	StatusPaused
	StatusOffline
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusNotConfigured:
		return "not-configured"
	case StatusInProgress:
		return "in-progress"
	case StatusOK:
		return "ok"
	case StatusPaused:
		return "paused"
	case StatusOffline:
		return "offline"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Callbacks report replication lifecycle events. OnProgress receives a
// fraction in [0,1] during the bounded initial sync and nil once
// steady-state bi-directional sync begins, where no meaningful fraction
// exists. OnIdle fires when the connection catches up and goes
// quiescent. OnError carries retryable replication failures; they are
// never returned from SetServer.
type Callbacks struct {
	OnProgress func(fraction *float64)
	OnIdle     func()
	OnActive   func()
	OnError    func(err error)
}

// Opener resolves a server into a replica connection. A malformed
// target reports ErrInvalidServer.
type Opener func(ctx context.Context, server Server) (core.Replica, error)

// Config carries engine tuning. Zero values get defaults.
type Config struct {
	Logger       *slog.Logger
	PollInterval time.Duration
	BatchSize    int
}

// Engine owns replication between the local replica and at most one
// remote at a time. Switching servers fully disassociates the previous
// connection: a generation counter stamped into every callback path
// guarantees no stale callback fires after the switch, including
// events already in flight.
type Engine struct {
	local  core.Replica
	open   Opener
	logger *slog.Logger

	pollInterval time.Duration
	batchSize    int

	mu         sync.Mutex
	ctx        context.Context
	server     Server
	callbacks  Callbacks
	generation uint64
	status     Status
	paused     bool
	offline    bool
	worker     *replWorker
}

// NewEngine builds an engine replicating the given local replica.
func NewEngine(local core.Replica, open Opener, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Engine{
		local:        local,
		open:         open,
		logger:       logger,
		pollInterval: interval,
		batchSize:    batch,
		status:       StatusNotConfigured,
	}
}

// Start binds the engine to its root context. Replication spawned
// later stops when ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
}

// SetServer points the engine at a new target and installs the
// callbacks. Setting an equal server is a no-op that leaves running
// replication untouched. A blank server disconnects. Malformed targets
// return an error immediately; replication failures after this call
// returns are routed through OnError instead.
func (e *Engine) SetServer(server Server, callbacks Callbacks) error {
	norm := server.Normalize()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		return fmt.Errorf("sync engine not started")
	}
	if norm.Equal(e.server) && (e.worker != nil || !norm.Configured()) {
		return nil
	}

	e.generation++
	e.stopWorkerLocked()
	e.server = norm
	e.callbacks = callbacks

	if !norm.Configured() {
		e.status = StatusNotConfigured
		return nil
	}

	remote, err := e.open(e.ctx, norm)
	if err != nil {
		e.server = Server{}
		e.status = StatusNotConfigured
		return fmt.Errorf("failed to open sync target %q: %w", norm.Name, err)
	}

	if e.paused {
		e.status = StatusPaused
		return nil
	}
	if e.offline {
		e.status = StatusOffline
		return nil
	}
	e.startWorkerLocked(remote)
	return nil
}

// Pause suspends replication without forgetting the server.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	e.generation++
	e.stopWorkerLocked()
	if e.server.Configured() {
		e.status = StatusPaused
	}
}

// Resume restarts replication after Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	e.restartLocked()
}

// GoOffline suspends replication for loss of connectivity. Unlike
// Pause this is reported as a distinct status.
func (e *Engine) GoOffline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offline = true
	e.generation++
	e.stopWorkerLocked()
	if e.server.Configured() {
		e.status = StatusOffline
	}
}

// GoOnline restarts replication after GoOffline.
func (e *Engine) GoOnline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offline = false
	e.restartLocked()
}

// Stop halts replication, leaving the engine quiescent but still
// configured. Resume restarts it.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	e.generation++
	e.stopWorkerLocked()
	if e.server.Configured() {
		e.status = StatusPaused
	}
}

// Status reports the current sync state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Server reports the configured target.
func (e *Engine) Server() Server {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.server
}

func (e *Engine) restartLocked() {
	if !e.server.Configured() || e.paused || e.offline || e.worker != nil {
		return
	}
	remote, err := e.open(e.ctx, e.server)
	if err != nil {
		e.status = StatusError
		e.deliverErrorLocked(e.generation, err)
		return
	}
	e.startWorkerLocked(remote)
}

func (e *Engine) startWorkerLocked(remote core.Replica) {
	gen := e.generation
	w := newReplWorker(e, remote, gen)
	e.worker = w
	e.status = StatusInProgress
	if err := w.Start(e.ctx); err != nil {
		e.worker = nil
		e.status = StatusError
		e.deliverErrorLocked(gen, err)
	}
}

func (e *Engine) stopWorkerLocked() {
	if e.worker == nil {
		return
	}
	w := e.worker
	e.worker = nil

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := w.Stop(stopCtx); err != nil {
		e.logger.Warn("sync worker did not stop cleanly", "error", err)
	}
	cancel()

	if closer, ok := w.remote.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			e.logger.Warn("failed to close remote replica", "error", err)
		}
	}
}

// deliver invokes a callback only if the generation that produced it is
// still current, dropping in-flight events from a replaced connection.
func (e *Engine) deliver(gen uint64, fn func(Callbacks)) {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	callbacks := e.callbacks
	e.mu.Unlock()
	fn(callbacks)
}

func (e *Engine) deliverErrorLocked(gen uint64, err error) {
	if gen != e.generation {
		return
	}
	if cb := e.callbacks.OnError; cb != nil {
		// Off the lock, in case the callback re-enters the engine.
		go cb(err)
	}
}

func (e *Engine) setStatus(gen uint64, status Status) {
	e.mu.Lock()
	if gen == e.generation {
		e.status = status
	}
	e.mu.Unlock()
}
