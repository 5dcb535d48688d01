package notes_test

import (
	"sync"
	"testing"
	"time"

	"notes-go/internal/notes"
	"notes-go/internal/testutil"
)

type fireLog struct {
	mu   sync.Mutex
	seqs []uint64
}

func (l *fireLog) fire(seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seqs = append(l.seqs, seq)
}

func (l *fireLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seqs)
}

func TestDebouncer(t *testing.T) {
	const delay = 2500 * time.Millisecond

	t.Run("rearming restarts the wait", func(t *testing.T) {
		clock := testutil.FixedClock()
		log := &fireLog{}
		d := notes.NewDebouncer(clock, delay, log.fire)

		d.Arm()
		clock.Advance(500 * time.Millisecond)
		d.Arm()
		clock.Advance(500 * time.Millisecond)
		last := d.Arm()

		clock.Advance(delay - time.Millisecond)
		if log.count() != 0 {
			t.Fatalf("fired %d times before the delay elapsed", log.count())
		}
		clock.Advance(time.Millisecond)
		if log.count() != 1 {
			t.Fatalf("fired %d times, want 1", log.count())
		}
		if log.seqs[0] != last {
			t.Errorf("fired with seq %d, want %d", log.seqs[0], last)
		}
		if d.Pending() {
			t.Error("Pending() = true after firing")
		}
	})

	t.Run("cancel drops the firing", func(t *testing.T) {
		clock := testutil.FixedClock()
		log := &fireLog{}
		d := notes.NewDebouncer(clock, delay, log.fire)

		d.Arm()
		if !d.Pending() {
			t.Error("Pending() = false after Arm")
		}
		d.Cancel()
		clock.Advance(time.Minute)
		if log.count() != 0 {
			t.Errorf("fired %d times after Cancel", log.count())
		}
		if clock.Pending() != 0 {
			t.Errorf("clock has %d live timers after Cancel", clock.Pending())
		}
	})
}
