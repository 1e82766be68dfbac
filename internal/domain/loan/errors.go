package loan

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so callers can map it to a transport status.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindStateConflict Kind = "state_conflict"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

var (
	ErrNotFound          = errors.New("loan not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrVersionConflict   = errors.New("loan was modified concurrently")
)

// Error is the single error type returned by the lifecycle engine.
// Reason carries a stable machine code (e.g. "own_loan", "status_not_pending").
type Error struct {
	Kind   Kind
	Reason string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidation(reason, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

func NewAuthorization(reason, msg string) *Error {
	return &Error{Kind: KindAuthorization, Reason: reason, Msg: msg}
}

// NewStateConflict wraps ErrInvalidTransition so errors.Is keeps working for callers
// that only care about "wrong status".
func NewStateConflict(reason, format string, args ...any) *Error {
	return &Error{Kind: KindStateConflict, Reason: reason, Msg: fmt.Sprintf(format, args...), Err: ErrInvalidTransition}
}

func NewNotFound(loanID string) *Error {
	return &Error{Kind: KindNotFound, Reason: "loan_not_found", Msg: "loan " + loanID, Err: ErrNotFound}
}

// Wrap classifies an infrastructure error. Sentinels from the store are mapped to
// their kinds, everything else is internal.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &Error{Kind: KindNotFound, Reason: "loan_not_found", Msg: msg, Err: err}
	case errors.Is(err, ErrVersionConflict):
		return &Error{Kind: KindStateConflict, Reason: "concurrent_update", Msg: msg, Err: err}
	}
	return &Error{Kind: KindInternal, Reason: "internal", Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// ReasonOf returns the reason code of an engine error, or "" otherwise.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
