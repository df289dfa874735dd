// Package apierror provides the typed error taxonomy shared by services and
// handlers. Services return these errors; the HTTP layer maps each Kind to a
// status code. Internal details (stack traces, DB errors) never reach clients.
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers know how to react: fix the input,
// resolve a conflicting session, retry later, etc.
type Kind string

const (
	KindValidation Kind = "validation" // malformed or missing input
	KindConflict   Kind = "conflict"   // duplicate open session per punto de venta
	KindState      Kind = "state"      // invalid lifecycle transition (cerrar twice)
	KindNotFound   Kind = "not_found"  // no row for (comercio, id)
	KindDependency Kind = "dependency" // ledger / store unavailable mid-operation; retryable
)

// Edge-only kinds emitted by the HTTP layer, never by the core services.
const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal"
)

// Error is the canonical error envelope. Fields is populated only for
// validation errors (field → failed rule/description).
type Error struct {
	Kind   Kind              `json:"kind"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s %v", e.Kind, e.Detail, e.Fields)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the wrapped cause for logging; it is never serialized.
func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Validation(detail string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Detail: detail, Fields: fields}
}

// ValidationField is shorthand for a single offending field.
func ValidationField(field, rule string) *Error {
	return Validation("Error de validacion", map[string]string{field: rule})
}

func Conflict(detail string) *Error { return New(KindConflict, detail) }

func State(detail string) *Error { return New(KindState, detail) }

func NotFound(detail string) *Error { return New(KindNotFound, detail) }

// Dependency wraps a collaborator failure (ledger, store, SMTP). Retryable by
// the caller — never by this core.
func Dependency(detail string, cause error) *Error {
	return &Error{Kind: KindDependency, Detail: detail, cause: cause}
}

// KindOf extracts the Kind from any error in the chain.
// Unclassified errors report an empty Kind.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
