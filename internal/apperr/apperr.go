// Copyright (c) 2025 Northbound System
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an error with the taxonomy the request and worker layers
// translate at their respective boundaries.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindTransientUpstream Kind = "transient_upstream"
	KindBudgetExceeded    Kind = "budget_exceeded"
	KindExtraction        Kind = "extraction"
	KindEmptyDocument     Kind = "empty_document"
	KindClassifier        Kind = "classifier"
	KindConflict          Kind = "conflict"
	KindPermanent         Kind = "permanent"
)

// Error is the boundary-crossing error type every layer maps its
// failures onto. Internally, wrap with fmt.Errorf("...: %w", err) as
// usual; only tag with a Kind where a caller needs to branch on it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a tagged error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an existing error with a Kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to KindPermanent if err
// is not a tagged *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPermanent
}

// IsTransient reports whether err should be retried by a worker.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindTransientUpstream:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Kind to the status code §7 assigns it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTransientUpstream:
		return http.StatusServiceUnavailable
	case KindBudgetExceeded:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes {"error": message} with the status implied by err's
// Kind. AuthorizationError never leaks whether the underlying object
// exists — callers should use KindAuthorization (not KindNotFound) for
// cross-tenant access attempts regardless of whether the row is present.
func WriteJSON(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, err.Error())
}
