package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindNotFound Kind = "NOT_FOUND"
	KindSchema   Kind = "SCHEMA"
	KindData     Kind = "DATA"
)

// Sentinels for errors.Is matching against any *Error of the same kind.
var (
	ErrNotFound = errors.New("not found")
	ErrSchema   = errors.New("schema mismatch")
	ErrData     = errors.New("invalid data")
)

// Error is the application error carried through every pipeline stage.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports a match against the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrSchema:
		return e.Kind == KindSchema
	case ErrData:
		return e.Kind == KindData
	}
	return false
}

// With attaches a context value and returns the same error.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// NotFound reports a missing input resource.
func NotFound(cause error, format string, args ...any) *Error {
	return newError(KindNotFound, cause, format, args...)
}

// Schema reports a missing target column or a feature column mismatch.
func Schema(format string, args ...any) *Error {
	return newError(KindSchema, nil, format, args...)
}

// Data reports input that cannot support the requested operation.
func Data(format string, args ...any) *Error {
	return newError(KindData, nil, format, args...)
}

// DataWrap is Data with an underlying cause.
func DataWrap(cause error, format string, args ...any) *Error {
	return newError(KindData, cause, format, args...)
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
