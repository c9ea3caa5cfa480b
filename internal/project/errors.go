package project

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed indicates a document that is not a project.
	ErrMalformed = errors.New("malformed project document")

	// ErrSessionBusy indicates datasets that could not be cleared before a
	// load because they are locked.
	ErrSessionBusy = errors.New("session has locked datasets")
)

// VersionError is returned for documents written by a newer format.
type VersionError struct {
	Found     int
	Supported int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("project format version %d is newer than supported version %d", e.Found, e.Supported)
}
