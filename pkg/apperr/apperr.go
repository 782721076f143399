// Package apperr defines the error kinds observable at the runtime boundary
// (spec §7) and the HTTP status codes they map to (spec §6).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the runtime's observable error categories.
type Kind string

const (
	// KindPermissionDenied is returned when the caller lacks a tool's permission tag.
	KindPermissionDenied Kind = "permission_denied"

	// KindContextOverflow is returned when the message budget cannot be
	// compacted below the model's context window.
	KindContextOverflow Kind = "context_overflow"

	// KindBackendUnavailable is returned by an adapter when the backend is
	// down or unreachable. Never surfaced to the caller; fed back to the LLM.
	KindBackendUnavailable Kind = "backend_unavailable"

	// KindBackendError is a remote error returned by an adapter.
	KindBackendError Kind = "backend_error"

	// KindOperationUnsupported is returned when an adapter does not declare
	// the requested operation.
	KindOperationUnsupported Kind = "operation_unsupported"

	// KindResourceBusy is returned by the GPU scheduler on acquire timeout.
	KindResourceBusy Kind = "resource_busy"

	// KindCheckpointConflict is returned when a concurrent writer's
	// step_index does not match the expected next value.
	KindCheckpointConflict Kind = "checkpoint_conflict"

	// KindDeadlineExceeded is returned when a turn exceeds its deadline.
	KindDeadlineExceeded Kind = "deadline_exceeded"

	// KindUpstreamUnavailable is returned when the LLM endpoint is
	// unreachable after retries.
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindInternal is an unclassified internal error.
	KindInternal Kind = "internal_error"
)

// httpStatus maps each Kind to the HTTP status spec.md §6/§7 assigns it.
var httpStatus = map[Kind]int{
	KindPermissionDenied:     http.StatusForbidden,
	KindContextOverflow:      http.StatusBadRequest,
	KindResourceBusy:         http.StatusTooManyRequests,
	KindDeadlineExceeded:     http.StatusRequestTimeout,
	KindUpstreamUnavailable:  http.StatusServiceUnavailable,
	KindCheckpointConflict:   http.StatusInternalServerError,
	KindInternal:             http.StatusInternalServerError,
	KindBackendUnavailable:   http.StatusInternalServerError, // never surfaced; fallback only
	KindBackendError:         http.StatusInternalServerError, // never surfaced; fallback only
	KindOperationUnsupported: http.StatusInternalServerError, // never surfaced; fallback only
}

// Error is the concrete error type carried across the runtime boundary.
// It is errors.Is/As compatible: callers can match on Kind via the KindOf
// and Is helpers below.
type Error struct {
	Kind    Kind
	Message string
	Code    string // adapter-specific error code, set for KindBackendError
	cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the HTTP status code this error kind maps to.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind, preserving cause for errors.Unwrap.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// BackendError constructs a KindBackendError with an adapter-specific code.
func BackendError(code, message string) *Error {
	return &Error{Kind: KindBackendError, Code: code, Message: message}
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Recoverable reports whether a tool error should be fed back to the LLM
// instead of surfaced to the caller (spec §7 propagation rules).
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindBackendUnavailable, KindBackendError, KindOperationUnsupported:
		return true
	default:
		return false
	}
}
