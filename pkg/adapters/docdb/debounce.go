package docdb

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of events per key: each add resets the
// key's timer, and the callback fires only after the window elapses
// uninterrupted.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
	stopped bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// add schedules fire for the key, restarting the window if a timer is
// already pending.
func (d *debouncer) add(key string, fire func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if t, ok := d.timers[key]; ok {
		// If Stop reports false the timer already expired and its
		// callback owns the wg slot.
		if t.Stop() {
			d.wg.Done()
		}
	}

	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.stopped || d.timers[key] != t {
			// Superseded between expiry and acquiring the lock; the
			// replacement timer owns the key now.
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()

		fire()
	})
	d.timers[key] = t
}

// stopAndWait stops accepting new events and waits up to timeout for
// in-flight timers to complete.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}
