package prefs

import (
	"fmt"
	"path/filepath"
	"strings"

	"notes-go/internal/config"
	"notes-go/internal/notes"
)

// NewFromConfig creates the durable and session-scoped preference stores.
// sessionKey names the session file, so separate shells keep separate
// active folder and note pointers. It must not contain path separators.
func NewFromConfig(cfg config.PreferencesConfig, sessionKey string) (*notes.Preferences, error) {
	switch cfg.Type {
	case "memory":
		return notes.NewPreferences(NewMemoryStore(), NewMemoryStore()), nil
	case "file":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("dir required for file preferences")
		}
		if sessionKey == "" {
			sessionKey = "default"
		}
		if sessionKey == "." || sessionKey == ".." || strings.ContainsAny(sessionKey, `/\`) {
			return nil, fmt.Errorf("invalid session key %q", sessionKey)
		}
		durable := NewFileStore(filepath.Join(cfg.Dir, "preferences.toml"))
		session := NewFileStore(filepath.Join(cfg.Dir, "sessions", sessionKey+".toml"))
		return notes.NewPreferences(durable, session), nil
	default:
		return nil, fmt.Errorf("unknown preferences type: %s", cfg.Type)
	}
}
