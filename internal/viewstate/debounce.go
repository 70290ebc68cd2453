package viewstate

import (
	"sync"
	"time"
)

// SearchQuietPeriod is how long search input must stay unchanged before it
// is applied.
const SearchQuietPeriod = 1000 * time.Millisecond

// Timer is the subset of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// DebounceOption configures a Debouncer.
type DebounceOption func(*Debouncer)

// WithAfterFunc replaces the timer source, for deterministic tests.
func WithAfterFunc(after AfterFunc) DebounceOption {
	return func(d *Debouncer) {
		if after != nil {
			d.after = after
		}
	}
}

// WithInitial seeds the last fired value so an unchanged first value is
// suppressed, e.g. the search term already present in the URL.
func WithInitial(value string) DebounceOption {
	return func(d *Debouncer) {
		d.last = value
		d.fired = true
	}
}

// Debouncer delivers the latest pushed value once input has been quiet for the
// configured period, and only when it differs from the previously delivered
// value.
type Debouncer struct {
	mu      sync.Mutex
	quiet   time.Duration
	fire    func(string)
	after   AfterFunc
	timer   Timer
	seq     uint64
	pending string
	hasPend bool
	last    string
	fired   bool
}

// NewDebouncer returns a debouncer calling fire on its own goroutine (or the
// injected AfterFunc's) when a value settles.
func NewDebouncer(quiet time.Duration, fire func(string), opts ...DebounceOption) *Debouncer {
	d := &Debouncer{
		quiet: quiet,
		fire:  fire,
		after: func(dur time.Duration, f func()) Timer { return time.AfterFunc(dur, f) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Push records value and restarts the quiet period.
func (d *Debouncer) Push(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = value
	d.hasPend = true
	d.timer = d.after(d.quiet, func() { d.settle(seq) })
}

// settle fires the pending value if no newer Push superseded it.
func (d *Debouncer) settle(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || !d.hasPend {
		d.mu.Unlock()
		return
	}
	value, ok := d.takeLocked()
	d.mu.Unlock()
	if ok {
		d.fire(value)
	}
}

func (d *Debouncer) takeLocked() (string, bool) {
	value := d.pending
	d.hasPend = false
	d.timer = nil
	if d.fired && value == d.last {
		return "", false
	}
	d.last = value
	d.fired = true
	return value, true
}

// Flush delivers a pending value immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.hasPend {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	value, ok := d.takeLocked()
	d.mu.Unlock()
	if ok {
		d.fire(value)
	}
}

// Stop cancels any pending value.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.hasPend = false
}

// Pending reports whether a value is waiting for the quiet period.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPend
}
