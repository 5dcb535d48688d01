package auth

import (
	"context"
	"fmt"

	"notes-go/internal/config"
	"notes-go/internal/notes"
)

// Provider is an Authenticator that can also sign out.
type Provider interface {
	notes.Authenticator
	Current() *notes.Identity
	SignOut()
}

// NewFromConfig creates a Provider based on the auth config type. idToken
// is only used by the firebase provider; when empty it starts signed out.
func NewFromConfig(ctx context.Context, cfg config.AuthConfig, idToken string, logger notes.Logger) (Provider, error) {
	switch cfg.Type {
	case "static", "":
		if cfg.UID == "" {
			return NewStaticAuthenticator(nil), nil
		}
		return NewStaticAuthenticator(&notes.Identity{
			UID:         cfg.UID,
			Email:       cfg.Email,
			DisplayName: cfg.DisplayName,
		}), nil
	case "firebase":
		a, err := NewFirebaseAuthenticator(ctx, cfg.ProjectID, cfg.CredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		if idToken != "" {
			if err := a.SignIn(ctx, idToken); err != nil {
				return nil, err
			}
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}
