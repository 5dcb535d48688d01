package notes

// Identity is a signed-in user. Folders and notes live under UID.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// Authenticator is the hosted authentication provider.
type Authenticator interface {
	// OnIdentityChange calls fn with the current identity (nil when signed
	// out) and again after every change.
	OnIdentityChange(fn func(*Identity)) Subscription
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID
}
