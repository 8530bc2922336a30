package recovery

import (
	"errors"
	"fmt"
)

// Code classifies parse failures.
type Code int

const (
	CodeSyntax Code = iota + 1
	CodeMissingObject
	CodeInvalidReference
	CodeMalformedStructure
	CodeResourceExceeded
	CodeRecursionExceeded
)

func (c Code) String() string {
	switch c {
	case CodeSyntax:
		return "syntax error"
	case CodeMissingObject:
		return "missing object"
	case CodeInvalidReference:
		return "invalid reference"
	case CodeMalformedStructure:
		return "malformed structure"
	case CodeResourceExceeded:
		return "resource limit exceeded"
	case CodeRecursionExceeded:
		return "recursion limit exceeded"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Code.
var (
	ErrSyntax             = errors.New(CodeSyntax.String())
	ErrMissingObject      = errors.New(CodeMissingObject.String())
	ErrInvalidReference   = errors.New(CodeInvalidReference.String())
	ErrMalformedStructure = errors.New(CodeMalformedStructure.String())
	ErrResourceExceeded   = errors.New(CodeResourceExceeded.String())
	ErrRecursionExceeded  = errors.New(CodeRecursionExceeded.String())
)

func (c Code) sentinel() error {
	switch c {
	case CodeSyntax:
		return ErrSyntax
	case CodeMissingObject:
		return ErrMissingObject
	case CodeInvalidReference:
		return ErrInvalidReference
	case CodeMalformedStructure:
		return ErrMalformedStructure
	case CodeResourceExceeded:
		return ErrResourceExceeded
	case CodeRecursionExceeded:
		return ErrRecursionExceeded
	}
	return nil
}

// Error is a classified parse failure. Offset is -1 when no byte position applies.
type Error struct {
	Code   Code
	Op     string
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("pdf: %s at offset %d: %s", e.Op, e.Offset, msg)
	}
	return fmt.Sprintf("pdf: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Code.sentinel()
}

func newError(code Code, op string, off int64, err error) *Error {
	return &Error{Code: code, Op: op, Offset: off, Err: err}
}

func Syntax(op string, off int64, err error) error {
	return newError(CodeSyntax, op, off, err)
}

func MissingObject(op string, off int64, err error) error {
	return newError(CodeMissingObject, op, off, err)
}

func InvalidReference(op string, off int64, err error) error {
	return newError(CodeInvalidReference, op, off, err)
}

func Malformed(op string, off int64, err error) error {
	return newError(CodeMalformedStructure, op, off, err)
}

func ResourceExceeded(op string, off int64, err error) error {
	return newError(CodeResourceExceeded, op, off, err)
}

func RecursionExceeded(op string, off int64, err error) error {
	return newError(CodeRecursionExceeded, op, off, err)
}

// CodeOf returns the classification of err, or 0 if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
