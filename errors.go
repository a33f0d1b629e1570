package loom_archiver

import (
	"fmt"
)

// ResolutionError means the platform refused to exchange an identifier for a media URL, or answered with something
// that could not be understood.
type ResolutionError struct {
	ID         string
	StatusCode int
	// Parse is set when the request succeeded but the body did not contain a usable URL.
	Parse bool
	Err   error
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Parse:
		return fmt.Sprintf("resolve %s: malformed response: %v", e.ID, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("resolve %s: %v", e.ID, e.Err)
	default:
		return fmt.Sprintf("resolve %s: unexpected status %d", e.ID, e.StatusCode)
	}
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ForbiddenError is the platform's signal that a signed media URL has expired or was never valid.
type ForbiddenError struct {
	URL string
}

func (e *ForbiddenError) Error() string {
	return "fetch: 403 forbidden (signed media URL expired or invalid)"
}

// TransferError covers every other fetch failure, network or filesystem.
type TransferError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch to %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("fetch to %s: unexpected status %d", e.Path, e.StatusCode)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// UsageError is an invalid or conflicting combination of command line arguments.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}
