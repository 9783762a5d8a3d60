package api

import (
	"errors"
	"fmt"
)

// --- Failure kind enum ---

// Kind classifies a backend-proxy failure so the tool layer can render
// it with an exhaustive switch instead of an exception hierarchy.
type Kind string

const (
	// KindUnauthorized means the API key was rejected (HTTP 401/403).
	KindUnauthorized Kind = "Unauthorized"

	// KindTaskNotFound means the backend has no task with that id.
	KindTaskNotFound Kind = "TaskNotFound"

	// KindProjectNotFound means the backend has no project with that id.
	KindProjectNotFound Kind = "ProjectNotFound"

	// KindInvalidStateTransition means the backend rejected a task
	// transition because of the task's current status. This is a
	// legitimate business rejection, not a bug.
	KindInvalidStateTransition Kind = "InvalidStateTransition"

	// KindNotConfigured means required local configuration is missing,
	// e.g. no project scope where one is needed.
	KindNotConfigured Kind = "NotConfigured"

	// KindNetworkError means the HTTP round trip itself failed
	// (connection refused, timeout, DNS).
	KindNetworkError Kind = "NetworkError"

	// KindAPIError is the generic fallback for any other non-2xx.
	KindAPIError Kind = "ApiError"
)

// Error is a tagged backend-proxy failure: a machine-readable kind,
// a human-readable message, and the originating HTTP status when the
// failure came from a backend response (0 otherwise).
type Error struct {
	Kind    Kind
	Message string
	Status  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// newError builds an *Error with no originating HTTP status.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrorKind extracts the Kind from err, unwrapping as needed.
// Returns KindAPIError with ok=false when err is not an api.Error.
func ErrorKind(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return KindAPIError, false
}

// IsKind reports whether err is an api.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := ErrorKind(err)
	return ok && k == kind
}
