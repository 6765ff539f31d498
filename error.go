package nanolog

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a failure the way spec.md §7 enumerates them:
// configuration/init failures, producer-side drops, consumer-side
// corruption, writer I/O, and decoder failures.
//
// Adapted from the teacher's UblkErrorCode in errors.go — same
// string-enum shape, generalized from block-device categories to the
// logging pipeline's own.
type ErrorCode string

const (
	ErrCodeConfig        ErrorCode = "invalid configuration"
	ErrCodeAlreadyInit   ErrorCode = "already initialized"
	ErrCodeNotInit       ErrorCode = "not initialized"
	ErrCodeRegistryFull  ErrorCode = "too many log sites or arguments"
	ErrCodeBufferFull    ErrorCode = "staging buffer registry full"
	ErrCodeEntryTooLarge ErrorCode = "entry exceeds maximum size"
	ErrCodeTypeMismatch  ErrorCode = "argument type mismatch"
	ErrCodeWriterIO      ErrorCode = "writer I/O error"
	ErrCodeDecode        ErrorCode = "decode error"
	ErrCodeAffinity      ErrorCode = "failed to set CPU affinity"
)

// Error is the structured error type every exported operation returns.
// Adapted from the teacher's *ublk.Error: an Op/Code/Msg/Inner tuple
// with Unwrap/Is support for errors.Is/errors.As, generalized from the
// teacher's device/queue fields (not applicable here) down to just Op
// and Code.
type Error struct {
	Op    string    // operation that failed, e.g. "Init", "Preallocate", "Log"
	Code  ErrorCode // high-level category
	Msg   string    // human-readable detail
	Inner error     // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("nanolog: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("nanolog: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

func newError(op string, code ErrorCode, inner error) *Error {
	e := &Error{Op: op, Code: code, Inner: inner}
	if inner != nil {
		e.Msg = inner.Error()
	}
	return e
}

// IsCode reports whether err is (or wraps) a *nanolog.Error with code.
func IsCode(err error, code ErrorCode) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}
