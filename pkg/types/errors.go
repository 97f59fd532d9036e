package types

import "errors"

// Kind classifies an error for edge mapping. The HTTP layer translates
// kinds to status codes; components never import net/http for this.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindAuthRequired        Kind = "auth_required"
	KindAuthFailed          Kind = "auth_failed"
	KindUnentitled          Kind = "unentitled"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindLimitReached        Kind = "limit_reached"
	KindRateLimited         Kind = "rate_limited"
	KindNotRunning          Kind = "not_running"
	KindUnreachable         Kind = "unreachable"
	KindUpstreamUnreachable Kind = "upstream_unreachable"
	KindProviderDown        Kind = "provider_down"
	KindEngineError         Kind = "engine_error"
	KindInternal            Kind = "internal"
)

// Error is the domain error carried across component boundaries. Message
// and Details are safe for clients; secret material never appears in
// either.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a domain error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a domain error wrapping an underlying cause. The cause
// is preserved for logs and errors.Is/As but is not rendered to clients.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches structured detail fields and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// KindOf extracts the kind from an error chain, defaulting to
// KindInternal for anything undomesticated.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
