package watch

import (
	"time"
)

// Debouncer coalesces rapid events into a single signal. Every Trigger
// restarts the quiet period; once it elapses without another Trigger the
// channel returned by C fires exactly once.
//
// A Debouncer is owned by a single goroutine, typically a select loop that
// waits on C alongside its event sources.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	pending  int
}

// NewDebouncer creates a debouncer that waits for interval of quiet
// before firing.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger records an event and restarts the quiet period.
func (d *Debouncer) Trigger() {
	d.pending++

	if d.timer == nil {
		d.timer = time.NewTimer(d.interval)
		return
	}

	d.timer.Reset(d.interval)
}

// C returns the channel that fires when the current burst settles, or nil
// when no burst is pending. A nil channel blocks forever in a select.
func (d *Debouncer) C() <-chan time.Time {
	if d.pending == 0 || d.timer == nil {
		return nil
	}

	return d.timer.C
}

// Fire clears the current burst and returns how many events it contained.
// Call it after receiving from C.
func (d *Debouncer) Fire() int {
	n := d.pending
	d.pending = 0

	return n
}

// Pending returns the number of events in the current burst.
func (d *Debouncer) Pending() int {
	return d.pending
}

// Stop cancels any pending burst.
func (d *Debouncer) Stop() {
	if d.timer != nil {
		d.timer.Stop()
	}

	d.pending = 0
}
