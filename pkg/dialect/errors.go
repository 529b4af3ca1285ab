package dialect

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrInvalidSpec    = errors.New("invalid definition")
	ErrUnsupported    = errors.New("operation not supported by dialect")
	ErrPrecondition   = errors.New("render precondition not met")
	ErrValue          = errors.New("value cannot be quoted")
	ErrUnknownDialect = errors.New("unknown dialect")
)

// SpecError reports an invalid builder configuration: an unknown column
// type, a foreign key without a reference, a malformed identifier.
type SpecError struct {
	Field  string
	Value  any
	Reason string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, fmt.Sprint(e.Value), e.Reason)
}

func (e *SpecError) Unwrap() error { return ErrInvalidSpec }

// UnsupportedError reports an operation the bound dialect cannot express.
type UnsupportedError struct {
	Dialect   Name
	Operation Operation
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Dialect, e.Operation)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// PreconditionError reports missing context the dialect needs to render.
type PreconditionError struct {
	Dialect   Name
	Operation Operation
	Missing   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %s requires %s", e.Dialect, e.Operation, e.Missing)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// ValueError reports a Go value that has no SQL literal form.
type ValueError struct {
	Value any
	Err   error
}

func (e *ValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot quote value of type %T: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("cannot quote value of type %T", e.Value)
}

func (e *ValueError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValue, e.Err}
	}
	return []error{ErrValue}
}
