package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
)

// SaveFunc persists the current state of one resource.
type SaveFunc func(ctx context.Context) error

// AutoSaver debounces saves per resource. Each Queue call supersedes
// the previous pending save for that resource and restarts the
// debounce window; at most one save per resource runs at a time, and a
// save queued during an in-flight save waits for it to finish.
type AutoSaver struct {
	delay  time.Duration
	logger *slog.Logger

	// OnError observes failed background saves. Flush errors are
	// returned to the caller instead.
	OnError func(resource string, err error)

	mu     sync.Mutex
	ctx    context.Context
	actors map[string]*saveActor
}

func newAutoSaver(delay time.Duration, logger *slog.Logger) *AutoSaver {
	return &AutoSaver{
		delay:  delay,
		logger: logger,
		actors: make(map[string]*saveActor),
	}
}

func (a *AutoSaver) start(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()
}

// Queue schedules a save for the resource after the debounce window.
func (a *AutoSaver) Queue(resource string, save SaveFunc) {
	actor := a.actor(resource)
	if actor == nil {
		a.logger.Warn("autosave queued before initialization", "resource", resource)
		return
	}
	actor.send(saveMsg{save: save})
}

// Flush runs the pending save for the resource immediately, if any,
// and returns its error.
func (a *AutoSaver) Flush(ctx context.Context, resource string) error {
	a.mu.Lock()
	actor := a.actors[resource]
	a.mu.Unlock()
	if actor == nil {
		return nil
	}
	return actor.flush(ctx)
}

// FlushAll flushes every resource with a pending save.
func (a *AutoSaver) FlushAll(ctx context.Context) error {
	a.mu.Lock()
	actors := make([]*saveActor, 0, len(a.actors))
	for _, actor := range a.actors {
		actors = append(actors, actor)
	}
	a.mu.Unlock()

	var firstErr error
	for _, actor := range actors {
		if err := actor.flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Pending reports how many resources currently have a queued save.
func (a *AutoSaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, actor := range a.actors {
		if actor.hasPending() {
			n++
		}
	}
	return n
}

func (a *AutoSaver) actor(resource string) *saveActor {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx == nil {
		return nil
	}
	actor, ok := a.actors[resource]
	if !ok {
		actor = newSaveActor(a, resource)
		a.actors[resource] = actor
		lifecycle.Go(a.ctx, actor.run)
	}
	return actor
}

type saveMsg struct {
	// save is the superseding pending save; nil marks a flush request.
	save SaveFunc
	done chan error
}

type saveActor struct {
	saver    *AutoSaver
	resource string
	msgs     chan saveMsg

	mu      sync.Mutex
	pending bool
}

func newSaveActor(a *AutoSaver, resource string) *saveActor {
	return &saveActor{
		saver:    a,
		resource: resource,
		msgs:     make(chan saveMsg),
	}
}

func (sa *saveActor) send(m saveMsg) {
	select {
	case sa.msgs <- m:
	case <-sa.saver.ctx.Done():
	}
}

func (sa *saveActor) flush(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case sa.msgs <- saveMsg{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-sa.saver.ctx.Done():
		return nil
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sa *saveActor) hasPending() bool {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.pending
}

func (sa *saveActor) setPending(v bool) {
	sa.mu.Lock()
	sa.pending = v
	sa.mu.Unlock()
}

func (sa *saveActor) run(ctx context.Context) error {
	var (
		pending SaveFunc
		timer   *time.Timer
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	runPending := func() error {
		if pending == nil {
			return nil
		}
		save := pending
		pending = nil
		sa.setPending(false)
		return save(ctx)
	}

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer()
			// Last chance: persist whatever is still pending.
			if pending != nil {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				save := pending
				pending = nil
				sa.setPending(false)
				if err := save(flushCtx); err != nil {
					sa.reportError(err)
				}
				cancel()
			}
			return nil

		case m := <-sa.msgs:
			if m.save == nil {
				stopTimer()
				m.done <- runPending()
				continue
			}
			pending = m.save
			sa.setPending(true)
			stopTimer()
			timer = time.NewTimer(sa.saver.delay)

		case <-timerC:
			timer = nil
			if err := runPending(); err != nil {
				sa.reportError(err)
			}
		}
	}
}

func (sa *saveActor) reportError(err error) {
	sa.saver.logger.Error("autosave failed", "resource", sa.resource, "error", err)
	if sa.saver.OnError != nil {
		sa.saver.OnError(sa.resource, err)
	}
}
