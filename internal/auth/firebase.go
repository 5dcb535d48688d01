package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"notes-go/internal/notes"
)

// tokenVerifier is the part of the Firebase auth client this package uses.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseAuthenticator signs in identities from verified Firebase ID tokens.
type FirebaseAuthenticator struct {
	feed
	verifier tokenVerifier
	logger   notes.Logger
}

// NewFirebaseAuthenticator creates an authenticator for projectID. An
// empty credentialsFile uses application default credentials.
func NewFirebaseAuthenticator(ctx context.Context, projectID, credentialsFile string, logger notes.Logger) (*FirebaseAuthenticator, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting firebase auth client: %w", err)
	}
	return newFirebaseAuthenticator(client, logger), nil
}

func newFirebaseAuthenticator(v tokenVerifier, logger notes.Logger) *FirebaseAuthenticator {
	if logger == nil {
		logger = notes.NewNopLogger()
	}
	return &FirebaseAuthenticator{verifier: v, logger: logger}
}

// SignIn verifies idToken and makes its subject the current identity.
func (a *FirebaseAuthenticator) SignIn(ctx context.Context, idToken string) error {
	token, err := a.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		a.logger.Warn("rejected firebase ID token", "error", err)
		return fmt.Errorf("verifying ID token: %w", err)
	}
	id := identityFromToken(token)
	a.logger.Info("firebase identity verified", "uid", id.UID)
	a.set(&id)
	return nil
}

// SignOut clears the identity.
func (a *FirebaseAuthenticator) SignOut() {
	a.set(nil)
}

func identityFromToken(token *fbauth.Token) notes.Identity {
	id := notes.Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	return id
}
