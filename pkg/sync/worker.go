package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"golang.org/x/sync/errgroup"

	"github.com/birchill/10sai-sub003/pkg/core"
)

// replWorker runs one replication connection. The initial catch-up is
// bounded (both feed positions are known up front) so it reports a
// progress fraction; after that the worker settles into steady-state
// polling where progress is indeterminate.
type replWorker struct {
	*worker.BaseWorker
	engine *Engine
	remote core.Replica
	gen    uint64
	cancel context.CancelFunc
}

func newReplWorker(e *Engine, remote core.Replica, gen uint64) *replWorker {
	return &replWorker{
		BaseWorker: worker.NewBaseWorker("sync-replication"),
		engine:     e,
		remote:     remote,
		gen:        gen,
	}
}

func (w *replWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("sync worker already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *replWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *replWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

func (w *replWorker) run(ctx context.Context) error {
	e := w.engine

	if err := w.initialSync(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		e.setStatus(w.gen, StatusError)
		w.reportError(err)
		// Fall through to steady state; the next poll retries.
	} else {
		e.setStatus(w.gen, StatusOK)
		w.reportIdle()
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		moved, err := w.syncOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			e.setStatus(w.gen, StatusError)
			w.reportError(err)
		case moved > 0:
			e.setStatus(w.gen, StatusOK)
			w.reportIdle()
		}
	}
}

// initialSync drains both directions up to the feed positions observed
// at connect time, reporting a fraction as batches land, then marks
// progress indeterminate for the steady state that follows.
func (w *replWorker) initialSync(ctx context.Context) error {
	pullTotal, err := w.pending(ctx, w.remote, w.engine.local)
	if err != nil {
		return err
	}
	pushTotal, err := w.pending(ctx, w.engine.local, w.remote)
	if err != nil {
		return err
	}
	total := pullTotal + pushTotal

	w.engine.deliver(w.gen, func(cb Callbacks) {
		if cb.OnActive != nil {
			cb.OnActive()
		}
	})

	var done atomic.Uint64
	report := func(n int) {
		if total == 0 {
			return
		}
		fraction := float64(done.Add(uint64(n))) / float64(total)
		if fraction > 1 {
			fraction = 1
		}
		w.engine.deliver(w.gen, func(cb Callbacks) {
			if cb.OnProgress != nil {
				cb.OnProgress(&fraction)
			}
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := w.transfer(gctx, w.remote, w.engine.local, report)
		return err
	})
	g.Go(func() error {
		_, err := w.transfer(gctx, w.engine.local, w.remote, report)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// Steady-state bi-directional sync has no meaningful fraction.
	w.engine.deliver(w.gen, func(cb Callbacks) {
		if cb.OnProgress != nil {
			cb.OnProgress(nil)
		}
	})
	return nil
}

// syncOnce transfers one round in both directions concurrently and
// reports how many documents moved.
func (w *replWorker) syncOnce(ctx context.Context) (int, error) {
	var pulled, pushed int

	announced := false
	announce := func(int) {
		if !announced {
			announced = true
			w.engine.setStatus(w.gen, StatusInProgress)
			w.engine.deliver(w.gen, func(cb Callbacks) {
				if cb.OnActive != nil {
					cb.OnActive()
				}
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := w.transfer(gctx, w.remote, w.engine.local, announce)
		pulled = n
		return err
	})
	g.Go(func() error {
		n, err := w.transfer(gctx, w.engine.local, w.remote, announce)
		pushed = n
		return err
	})
	if err := g.Wait(); err != nil {
		return pulled + pushed, err
	}
	return pulled + pushed, nil
}

// transfer drains src's change feed into dst from dst's checkpoint
// onward, advancing the checkpoint after each applied batch. onBatch,
// if set, observes each batch size.
func (w *replWorker) transfer(ctx context.Context, src, dst core.Replica, onBatch func(int)) (int, error) {
	checkpoint, err := dst.Checkpoint(ctx, src.ID())
	if err != nil {
		return 0, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	moved := 0
	for {
		if err := ctx.Err(); err != nil {
			return moved, err
		}

		changes, last, err := src.ChangesSince(ctx, checkpoint, w.engine.batchSize)
		if err != nil {
			return moved, fmt.Errorf("failed to read changes: %w", err)
		}
		if len(changes) == 0 {
			return moved, nil
		}

		docs := make([]core.Document, 0, len(changes))
		for _, ch := range changes {
			docs = append(docs, ch.Doc)
		}
		if err := dst.Apply(ctx, docs); err != nil {
			return moved, fmt.Errorf("failed to apply changes: %w", err)
		}
		if err := dst.SetCheckpoint(ctx, src.ID(), last); err != nil {
			return moved, fmt.Errorf("failed to save checkpoint: %w", err)
		}

		checkpoint = last
		moved += len(changes)
		if onBatch != nil {
			onBatch(len(changes))
		}
	}
}

// pending estimates how many changes src still owes dst.
func (w *replWorker) pending(ctx context.Context, src, dst core.Replica) (int, error) {
	seq, err := src.Sequence(ctx)
	if err != nil {
		return 0, err
	}
	checkpoint, err := dst.Checkpoint(ctx, src.ID())
	if err != nil {
		return 0, err
	}
	if seq <= checkpoint {
		return 0, nil
	}
	return int(seq - checkpoint), nil
}

func (w *replWorker) reportError(err error) {
	w.engine.logger.Warn("replication error", "error", err)
	w.engine.deliver(w.gen, func(cb Callbacks) {
		if cb.OnError != nil {
			cb.OnError(err)
		}
	})
}

func (w *replWorker) reportIdle() {
	w.engine.deliver(w.gen, func(cb Callbacks) {
		if cb.OnIdle != nil {
			cb.OnIdle()
		}
	})
}
