package auth

import (
	"sync"

	"notes-go/internal/notes"
)

// feed broadcasts the current identity to listeners. Listeners are called
// with the feed locked, so they see changes in order and must not call
// back into the authenticator.
type feed struct {
	mu        sync.Mutex
	current   *notes.Identity
	listeners map[int]func(*notes.Identity)
	next      int
}

func (f *feed) OnIdentityChange(fn func(*notes.Identity)) notes.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listeners == nil {
		f.listeners = make(map[int]func(*notes.Identity))
	}
	f.next++
	key := f.next
	f.listeners[key] = fn
	fn(clone(f.current))

	return notes.NewSubscription(func() {
		f.mu.Lock()
		delete(f.listeners, key)
		f.mu.Unlock()
	})
}

// Current returns the signed-in identity, or nil.
func (f *feed) Current() *notes.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.current)
}

func (f *feed) set(id *notes.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = clone(id)
	for _, fn := range f.listeners {
		fn(clone(id))
	}
}

func clone(id *notes.Identity) *notes.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
