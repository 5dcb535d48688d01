package auth

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"

	"notes-go/internal/config"
	"notes-go/internal/notes"
)

type identityLog struct {
	got []*notes.Identity
}

func (l *identityLog) record(id *notes.Identity) { l.got = append(l.got, id) }

func (l *identityLog) uids() []string {
	out := make([]string, len(l.got))
	for i, id := range l.got {
		if id != nil {
			out[i] = id.UID
		}
	}
	return out
}

func TestStaticAuthenticator(t *testing.T) {
	t.Run("delivers current identity on subscribe", func(t *testing.T) {
		a := NewStaticAuthenticator(&notes.Identity{UID: "u1"})
		log := &identityLog{}
		a.OnIdentityChange(log.record)

		if got := log.uids(); len(got) != 1 || got[0] != "u1" {
			t.Errorf("identities = %v, want [u1]", got)
		}
	})

	t.Run("broadcasts changes until cancelled", func(t *testing.T) {
		a := NewStaticAuthenticator(nil)
		log := &identityLog{}
		sub := a.OnIdentityChange(log.record)

		if err := a.SignIn(notes.Identity{UID: "u1"}); err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		a.SignOut()
		sub.Cancel()
		if err := a.SignIn(notes.Identity{UID: "u2"}); err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}

		want := []string{"", "u1", ""}
		got := log.uids()
		if len(got) != len(want) {
			t.Fatalf("identities = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("identities[%d] = %q, want %q", i, got[i], want[i])
			}
		}
		if cur := a.Current(); cur == nil || cur.UID != "u2" {
			t.Errorf("Current() = %v, want u2", cur)
		}
	})

	t.Run("rejects empty uid", func(t *testing.T) {
		a := NewStaticAuthenticator(nil)
		if err := a.SignIn(notes.Identity{}); err == nil {
			t.Error("SignIn() expected error for empty uid")
		}
	})
}

type stubVerifier struct {
	tokens map[string]*fbauth.Token
}

func (v *stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	if tok, ok := v.tokens[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("invalid token")
}

func TestFirebaseAuthenticator_SignIn(t *testing.T) {
	v := &stubVerifier{tokens: map[string]*fbauth.Token{
		"good": {UID: "fb-1", Claims: map[string]interface{}{"email": "a@example.com", "name": "Ada"}},
	}}
	a := newFirebaseAuthenticator(v, nil)
	log := &identityLog{}
	a.OnIdentityChange(log.record)

	if err := a.SignIn(context.Background(), "bad"); err == nil {
		t.Fatal("SignIn(bad) expected error")
	}
	if err := a.SignIn(context.Background(), "good"); err != nil {
		t.Fatalf("SignIn(good) error = %v", err)
	}

	cur := a.Current()
	if cur == nil {
		t.Fatal("Current() = nil after sign in")
	}
	if cur.UID != "fb-1" || cur.Email != "a@example.com" || cur.DisplayName != "Ada" {
		t.Errorf("Current() = %+v", cur)
	}
	if got := log.uids(); len(got) != 2 || got[1] != "fb-1" {
		t.Errorf("identities = %v, want [\"\" fb-1]", got)
	}
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("static signed in", func(t *testing.T) {
		p, err := NewFromConfig(ctx, config.AuthConfig{Type: "static", UID: "u1", Email: "u1@example.com"}, "", nil)
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		if cur := p.Current(); cur == nil || cur.Email != "u1@example.com" {
			t.Errorf("Current() = %v", cur)
		}
	})

	t.Run("static signed out", func(t *testing.T) {
		p, err := NewFromConfig(ctx, config.AuthConfig{Type: "static"}, "", nil)
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		if cur := p.Current(); cur != nil {
			t.Errorf("Current() = %v, want nil", cur)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewFromConfig(ctx, config.AuthConfig{Type: "ldap"}, "", nil); err == nil {
			t.Error("NewFromConfig() expected error for unknown type")
		}
	})
}
