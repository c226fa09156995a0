// Package errs defines the error kinds the simulation core surfaces to the
// controller. Every error carries a description and whether it is fatal.
package errs

import "fmt"

type Kind int

const (
	KindMalformedAction Kind = iota + 1
	KindUnsupportedAction
	KindTargetNotFound
	KindScenario
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindMalformedAction:
		return "malformed action"
	case KindUnsupportedAction:
		return "unsupported action"
	case KindTargetNotFound:
		return "target not found"
	case KindScenario:
		return "scenario error"
	case KindInvariantViolation:
		return "invariant violation"
	}
	return "unknown error"
}

// Fatal reports the default severity of a kind. Action errors are dropped
// at the tick boundary; everything else aborts the operation.
func (k Kind) Fatal() bool {
	return k != KindMalformedAction && k != KindUnsupportedAction
}

// Sentinels for errors.Is.
var (
	ErrMalformedAction    = &Error{Kind: KindMalformedAction}
	ErrUnsupportedAction  = &Error{Kind: KindUnsupportedAction}
	ErrTargetNotFound     = &Error{Kind: KindTargetNotFound}
	ErrScenario           = &Error{Kind: KindScenario}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
)

type Error struct {
	Kind        Kind
	Description string
	Fatal       bool
	Err         error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Description: fmt.Sprintf(format, args...), Fatal: kind.Fatal()}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Description: fmt.Sprintf(format, args...), Fatal: kind.Fatal(), Err: err}
}

func MalformedAction(format string, args ...any) *Error {
	return New(KindMalformedAction, format, args...)
}

func UnsupportedAction(format string, args ...any) *Error {
	return New(KindUnsupportedAction, format, args...)
}

func InvariantViolation(format string, args ...any) *Error {
	return New(KindInvariantViolation, format, args...)
}

func Scenario(err error, format string, args ...any) *Error {
	return Wrap(KindScenario, err, format, args...)
}

// TargetNotFoundEntity is raised on save when a MoveOrder names a dead entity.
func TargetNotFoundEntity(id uint64) *Error {
	return New(KindTargetNotFound, "entity %d", id)
}

// TargetNotFoundMarker is raised on load when a marker has no entity.
func TargetNotFoundMarker(marker uint64) *Error {
	return New(KindTargetNotFound, "marker %d", marker)
}
