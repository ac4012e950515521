package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies an error by how the caller is expected to react to it.
type Kind int

const KindUnknown Kind = 0

// Error kinds
const (
	KindValidation Kind = iota + 1000
	KindNotFound
	KindAuthExpired
	KindRemote
	KindTransport
	KindUnauthenticated
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthExpired:
		return "auth_expired"
	case KindRemote:
		return "remote"
	case KindTransport:
		return "transport"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// FieldError names a single rejected form or request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError represents an application error
type AppError struct {
	Kind    Kind         `json:"kind"`
	Status  int          `json:"status,omitempty"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	Err     error        `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HasField reports whether the error carries a field error for name.
func (e *AppError) HasField(name string) bool {
	for _, f := range e.Fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

// FieldNames returns the rejected field names in the order they were reported.
func (e *AppError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

// Validation builds a field-scoped error. It is produced locally and never
// reaches the network.
func Validation(fields ...FieldError) *AppError {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	msg := "validation failed"
	if len(parts) > 0 {
		msg = strings.Join(parts, "; ")
	}
	return &AppError{
		Kind:    KindValidation,
		Message: msg,
		Fields:  fields,
	}
}

// Field is a shorthand for a single-field validation error.
func Field(name, message string) *AppError {
	return Validation(FieldError{Field: name, Message: message})
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func AuthExpired(err error) *AppError {
	return &AppError{
		Kind:    KindAuthExpired,
		Status:  401,
		Message: "session expired, sign in again",
		Err:     err,
	}
}

// Remote wraps a non-2xx answer with the message decoded from its body.
func Remote(status int, message string) *AppError {
	return &AppError{
		Kind:    KindRemote,
		Status:  status,
		Message: message,
	}
}

// Transport wraps a failure to reach the remote service. The underlying
// message is passed through unchanged.
func Transport(err error) *AppError {
	return &AppError{
		Kind:    KindTransport,
		Message: err.Error(),
		Err:     err,
	}
}

// Unauthenticated rejects a request that carries no valid credentials.
func Unauthenticated(message string) *AppError {
	return &AppError{Kind: KindUnauthenticated, Status: 401, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Status: 403, Message: message}
}

// Conflict reports a well-formed request that clashes with current state.
func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Status: 409, Message: message}
}

// As finds the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status
	}
	return 0
}

func IsValidation(err error) bool  { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
func IsAuthExpired(err error) bool { return KindOf(err) == KindAuthExpired }
func IsRemote(err error) bool      { return KindOf(err) == KindRemote }
func IsTransport(err error) bool   { return KindOf(err) == KindTransport }
func IsConflict(err error) bool    { return KindOf(err) == KindConflict }
func IsForbidden(err error) bool   { return KindOf(err) == KindForbidden }
