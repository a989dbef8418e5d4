package hardware

import (
	"sync"
	"time"
)

// Debouncer accepts at most one edge per pin within a fixed window.
type Debouncer struct {
	mu     sync.Mutex
	window map[int]time.Duration
	last   map[int]time.Time
	now    func() time.Time
}

// NewDebouncer returns a Debouncer reading time from now. A nil now uses
// time.Now.
func NewDebouncer(now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{
		window: make(map[int]time.Duration),
		last:   make(map[int]time.Time),
		now:    now,
	}
}

// SetWindow sets the debounce window for pin and forgets its last edge.
func (d *Debouncer) SetWindow(pin int, window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window[pin] = window
	delete(d.last, pin)
}

// Allow reports whether an edge on pin arriving now should be delivered.
// Accepted edges restart the window; dropped ones do not.
func (d *Debouncer) Allow(pin int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.now()
	if last, ok := d.last[pin]; ok && t.Sub(last) <= d.window[pin] {
		return false
	}
	d.last[pin] = t
	return true
}

// Forget drops all state for pin.
func (d *Debouncer) Forget(pin int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.window, pin)
	delete(d.last, pin)
}
