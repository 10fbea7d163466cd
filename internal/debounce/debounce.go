// Package debounce provides keyed, cancellable timers. Scheduling a call for a
// key replaces any call still pending for that key.
package debounce

import (
	"sync"
	"time"
)

// DefaultWait is the debounce window used by the service
const DefaultWait = 300 * time.Millisecond

// Debouncer delays calls per key until the key has been quiet for the window
type Debouncer struct {
	wait    time.Duration
	mu      sync.Mutex
	pending map[string]*call
	stopped bool
	running sync.WaitGroup
}

type call struct {
	timer *time.Timer
	fn    func()
}

// New creates a debouncer; a non-positive wait selects DefaultWait
func New(wait time.Duration) *Debouncer {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Debouncer{
		wait:    wait,
		pending: make(map[string]*call),
	}
}

// Wait returns the debounce window
func (d *Debouncer) Wait() time.Duration {
	return d.wait
}

// Schedule runs fn after the window unless another Schedule or Cancel for the
// same key happens first. It returns false once the debouncer is stopped.
func (d *Debouncer) Schedule(key string, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}
	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}

	c := &call{fn: fn}
	c.timer = time.AfterFunc(d.wait, func() { d.fire(key, c) })
	d.pending[key] = c
	return true
}

// Cancel drops the pending call for key. It reports whether one was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.pending[key]
	if !ok {
		return false
	}
	c.timer.Stop()
	delete(d.pending, key)
	return true
}

// Flush runs the pending call for key now, on the caller's goroutine
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	c, ok := d.pending[key]
	if ok {
		c.timer.Stop()
		delete(d.pending, key)
		d.running.Add(1)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	defer d.running.Done()
	c.fn()
	return true
}

// Pending reports whether a call is waiting for key
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Len returns the number of pending calls
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Drain runs every pending call immediately, then stops the debouncer
func (d *Debouncer) Drain() {
	d.mu.Lock()
	d.stopped = true
	calls := make([]*call, 0, len(d.pending))
	for key, c := range d.pending {
		c.timer.Stop()
		calls = append(calls, c)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, c := range calls {
		c.fn()
	}
	d.running.Wait()
}

// Stop discards every pending call and waits for calls already running
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, c := range d.pending {
		c.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()

	d.running.Wait()
}

func (d *Debouncer) fire(key string, c *call) {
	d.mu.Lock()
	if d.pending[key] != c {
		// superseded or cancelled after the timer fired
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	c.fn()
}
