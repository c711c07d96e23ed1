package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies history store failures
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotConfigured
	KindSchemaMissing
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotConfigured:
		return "not_configured"
	case KindSchemaMissing:
		return "schema_missing"
	case KindConflict:
		return "conflict"
	default:
		return "other"
	}
}

// StoreError is returned by every HistoryStore implementation.
// errors.Is matches on Kind, so callers compare against the sentinels below.
type StoreError struct {
	Kind    ErrorKind
	Code    string // backend error code when one was reported (e.g. "23505")
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports whether target is a StoreError of the same kind.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors for store operations
var (
	// ErrNotConfigured indicates the store is unset or unreachable by configuration
	ErrNotConfigured = &StoreError{Kind: KindNotConfigured, Message: "history store is not configured"}

	// ErrSchemaMissing indicates the picks table does not exist
	ErrSchemaMissing = &StoreError{Kind: KindSchemaMissing, Message: "history table not found"}

	// ErrConflict indicates the id is already recorded
	ErrConflict = &StoreError{Kind: KindConflict, Message: "already recorded"}
)

// NewStoreError builds a StoreError of the given kind.
func NewStoreError(kind ErrorKind, code, message string, err error) *StoreError {
	return &StoreError{Kind: kind, Code: code, Message: message, Err: err}
}

// OtherError wraps an unclassified failure.
func OtherError(format string, args ...any) *StoreError {
	err := fmt.Errorf(format, args...)
	return &StoreError{Kind: KindOther, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, KindOther when err is not a StoreError.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}
