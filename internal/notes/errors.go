package notes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a folder, note or stored document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrGuardFailed is returned by DeleteGuarded when a guard query matched.
	ErrGuardFailed = errors.New("guard query not empty")

	ErrNoIdentity    = errors.New("not signed in")
	ErrNoFolder      = errors.New("no active folder")
	ErrIdle          = errors.New("editor is idle")
	ErrSessionClosed = errors.New("session closed")

	// ErrLoadFailed is returned by Ready when the folders or notes of the
	// signed-in identity could not be loaded.
	ErrLoadFailed = errors.New("session could not load")
)

// GuardError reports which guard query blocked a DeleteGuarded call.
// Index is the guard's position in the argument list.
type GuardError struct {
	Index int
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard query %d not empty", e.Index)
}

func (e *GuardError) Unwrap() error { return ErrGuardFailed }

// ValidationError is a user-facing rejection of an operation. Nothing was
// written when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// DeleteReason names the guard that blocked a folder deletion.
type DeleteReason string

const (
	ReasonDefault  DeleteReason = "default"
	ReasonChildren DeleteReason = "children"
	ReasonNotes    DeleteReason = "notes"
)

// FolderDeleteError reports a folder that cannot be deleted.
type FolderDeleteError struct {
	FolderID string
	Reason   DeleteReason
}

func (e *FolderDeleteError) Error() string {
	switch e.Reason {
	case ReasonDefault:
		return "the default folder cannot be deleted"
	case ReasonChildren:
		return "folder still has subfolders"
	default:
		return "folder still contains notes"
	}
}
