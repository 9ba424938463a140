package pipeline

import "time"

// Debouncer holds back a request until input has been quiet for a delay.
// The interactive side calls Trigger on every input event and Poll on every
// frame; Poll reports true once when the delay has elapsed. It is not safe
// for concurrent use.
type Debouncer struct {
	delay    time.Duration
	deadline time.Time
	active   bool
	now      func() time.Time
}

// NewDebouncer creates an idle debouncer.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, now: time.Now}
}

// Trigger starts, or restarts, the quiet period.
func (d *Debouncer) Trigger() {
	d.deadline = d.now().Add(d.delay)
	d.active = true
}

// Poll reports whether the quiet period has elapsed, and deactivates the
// debouncer when it has.
func (d *Debouncer) Poll() bool {
	if !d.active || d.now().Before(d.deadline) {
		return false
	}
	d.active = false
	return true
}

// Reset cancels a pending period.
func (d *Debouncer) Reset() { d.active = false }

// Active reports whether a period is pending.
func (d *Debouncer) Active() bool { return d.active }

// Remaining returns the time left in the pending period, or zero.
func (d *Debouncer) Remaining() time.Duration {
	if !d.active {
		return 0
	}
	return max(d.deadline.Sub(d.now()), 0)
}
