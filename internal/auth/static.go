package auth

import (
	"fmt"

	"notes-go/internal/notes"
)

// StaticAuthenticator signs in whatever identity it is told to. It backs
// the local CLI and tests.
type StaticAuthenticator struct {
	feed
}

// NewStaticAuthenticator starts signed in as id, or signed out if id is nil.
func NewStaticAuthenticator(id *notes.Identity) *StaticAuthenticator {
	a := &StaticAuthenticator{}
	a.current = clone(id)
	return a
}

// SignIn switches to id.
func (a *StaticAuthenticator) SignIn(id notes.Identity) error {
	if id.UID == "" {
		return fmt.Errorf("identity has no uid")
	}
	a.set(&id)
	return nil
}

// SignOut clears the identity.
func (a *StaticAuthenticator) SignOut() {
	a.set(nil)
}
