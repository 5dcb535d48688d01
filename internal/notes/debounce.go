package notes

import (
	"sync"
	"time"
)

// Debouncer runs fn once, delay after the most recent Arm. Every Arm
// restarts the wait; Cancel drops it.
//
// Arm returns a sequence number that is passed to fn when it fires, so a
// caller that processes the firing later can tell whether it is still the
// latest arming.
type Debouncer struct {
	clock Clock
	delay time.Duration
	fn    func(seq uint64)

	mu    sync.Mutex
	timer Timer
	seq   uint64
	armed bool
}

// NewDebouncer creates a Debouncer. fn runs on the clock's timer goroutine.
func NewDebouncer(clock Clock, delay time.Duration, fn func(seq uint64)) *Debouncer {
	return &Debouncer{clock: clock, delay: delay, fn: fn}
}

// Arm (re)starts the wait and returns the new sequence number.
func (d *Debouncer) Arm() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.armed = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
	return seq
}

// Cancel stops a pending firing.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.armed = false
}

// Pending reports whether a firing is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// A Stop that lost the race with the runtime timer lands here.
	if seq != d.seq || !d.armed {
		d.mu.Unlock()
		return
	}
	d.armed = false
	d.timer = nil
	d.mu.Unlock()

	d.fn(seq)
}
