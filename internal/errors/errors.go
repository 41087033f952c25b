// internal/errors/errors.go
package errors

import (
	"fmt"
)

type ErrorType string

const (
	ErrorTypeNotFoundObject        ErrorType = "NOT_FOUND_OBJECT"
	ErrorTypeKindMismatch          ErrorType = "KIND_MISMATCH"
	ErrorTypeUnknownRevision       ErrorType = "UNKNOWN_REVISION"
	ErrorTypeMalformedObject       ErrorType = "MALFORMED_OBJECT"
	ErrorTypePathInvariant         ErrorType = "PATH_INVARIANT_VIOLATION"
	ErrorTypeInvalidReferenceValue ErrorType = "INVALID_REFERENCE_VALUE"
	ErrorTypeCollaboratorFailure   ErrorType = "COLLABORATOR_FAILURE"
	ErrorTypeReferenceCycle        ErrorType = "REFERENCE_CYCLE"
)

// Sentinels for errors.Is. Only the Type is compared.
var (
	ErrNotFoundObject        = &Error{Type: ErrorTypeNotFoundObject}
	ErrKindMismatch          = &Error{Type: ErrorTypeKindMismatch}
	ErrUnknownRevision       = &Error{Type: ErrorTypeUnknownRevision}
	ErrMalformedObject       = &Error{Type: ErrorTypeMalformedObject}
	ErrPathInvariant         = &Error{Type: ErrorTypePathInvariant}
	ErrInvalidReferenceValue = &Error{Type: ErrorTypeInvalidReferenceValue}
	ErrCollaboratorFailure   = &Error{Type: ErrorTypeCollaboratorFailure}
	ErrReferenceCycle        = &Error{Type: ErrorTypeReferenceCycle}
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Corrupt reports whether the error indicates on-disk corruption rather
// than a condition the caller is expected to handle.
func (e *Error) Corrupt() bool {
	switch e.Type {
	case ErrorTypeMalformedObject, ErrorTypePathInvariant, ErrorTypeReferenceCycle:
		return true
	}
	return false
}

func NotFoundObject(id string) *Error {
	return &Error{
		Type:    ErrorTypeNotFoundObject,
		Message: fmt.Sprintf("object %s not found", id),
		Details: id,
	}
}

func KindMismatch(id, want, got string) *Error {
	return &Error{
		Type:    ErrorTypeKindMismatch,
		Message: fmt.Sprintf("object %s: expected %s, got %s", id, want, got),
		Details: map[string]string{"id": id, "want": want, "got": got},
	}
}

func UnknownRevision(rev string) *Error {
	return &Error{
		Type:    ErrorTypeUnknownRevision,
		Message: fmt.Sprintf("unknown revision %q", rev),
		Details: rev,
	}
}

func Malformed(id string, format string, args ...any) *Error {
	return &Error{
		Type:    ErrorTypeMalformedObject,
		Message: fmt.Sprintf("malformed object %s: %s", id, fmt.Sprintf(format, args...)),
		Details: id,
	}
}

func PathViolation(name string) *Error {
	return &Error{
		Type:    ErrorTypePathInvariant,
		Message: fmt.Sprintf("invalid path segment %q", name),
		Details: name,
	}
}

func InvalidReferenceValue(name string) *Error {
	return &Error{
		Type:    ErrorTypeInvalidReferenceValue,
		Message: fmt.Sprintf("reference %s: empty value", name),
		Details: name,
	}
}

func CollaboratorFailure(path string, err error) *Error {
	return &Error{
		Type:    ErrorTypeCollaboratorFailure,
		Message: fmt.Sprintf("rendering diff for %s", path),
		Details: path,
		Err:     err,
	}
}

func ReferenceCycle(chain []string) *Error {
	return &Error{
		Type:    ErrorTypeReferenceCycle,
		Message: fmt.Sprintf("symbolic reference cycle: %v", chain),
		Details: chain,
	}
}
