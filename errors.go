package contextual

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies agent failures.
type ErrorKind int

const (
	KindEmptyInput ErrorKind = iota + 1
	KindGatewayUnavailable
	KindGatewayTimeout
	KindMalformedClassifierOutput
	KindMalformedSplitterOutput
	KindNoSearchResults
)

var (
	ErrEmptyInput                = errors.New("input is empty")
	ErrGatewayUnavailable        = errors.New("gateway unavailable")
	ErrGatewayTimeout            = errors.New("gateway timed out")
	ErrMalformedClassifierOutput = errors.New("malformed classifier output")
	ErrMalformedSplitterOutput   = errors.New("malformed splitter output")
	ErrNoSearchResults           = errors.New("no search results")
)

func (k ErrorKind) String() string {
	switch k {
	case KindEmptyInput:
		return "EmptyInput"
	case KindGatewayUnavailable:
		return "GatewayUnavailable"
	case KindGatewayTimeout:
		return "GatewayTimeout"
	case KindMalformedClassifierOutput:
		return "MalformedClassifierOutput"
	case KindMalformedSplitterOutput:
		return "MalformedSplitterOutput"
	case KindNoSearchResults:
		return "NoSearchResults"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindEmptyInput:
		return ErrEmptyInput
	case KindGatewayUnavailable:
		return ErrGatewayUnavailable
	case KindGatewayTimeout:
		return ErrGatewayTimeout
	case KindMalformedClassifierOutput:
		return ErrMalformedClassifierOutput
	case KindMalformedSplitterOutput:
		return ErrMalformedSplitterOutput
	case KindNoSearchResults:
		return ErrNoSearchResults
	}
	return nil
}

// Error is returned by every Agent operation that fails.
// errors.Is matches it against the sentinel for its Kind.
type Error struct {
	Kind  ErrorKind
	Stage State
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// IsClientError reports whether err was caused by the caller's input
// rather than by a collaborator or the models.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyInput)
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind ErrorKind, stage State, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// gatewayError classifies a failed model, search or fetch call. callCtx is
// the per-call context so a deadline we imposed is told apart from the
// caller cancelling.
func gatewayError(stage State, callCtx, parent context.Context, err error) *Error {
	if parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return newError(KindGatewayTimeout, stage, err)
	}
	return newError(KindGatewayUnavailable, stage, err)
}
