package notes

import "sync"

// eventQueue serializes all session state changes onto one goroutine.
// busy counts queued events plus background tasks, so callers can wait
// for the session to go quiet.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []func()
	busy   int
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// post appends fn without blocking. It reports false once the queue is closed.
func (q *eventQueue) post(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.events = append(q.events, fn)
	q.busy++
	q.cond.Signal()
	return true
}

func (q *eventQueue) run() {
	for {
		q.mu.Lock()
		for len(q.events) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.events) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.events[0]
		q.events[0] = nil
		q.events = q.events[1:]
		q.mu.Unlock()

		fn()

		q.mu.Lock()
		q.busy--
		q.mu.Unlock()
	}
}

func (q *eventQueue) begin() {
	q.mu.Lock()
	q.busy++
	q.mu.Unlock()
}

func (q *eventQueue) end() {
	q.mu.Lock()
	q.busy--
	q.mu.Unlock()
}

func (q *eventQueue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy == 0
}

// close stops run once the remaining events have been processed.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
