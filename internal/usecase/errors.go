package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrorResponderUnavailable ErrorCode = "RESPONDER_UNAVAILABLE"
	ErrorInternal             ErrorCode = "INTERNAL_ERROR"
)

var (
	// ErrEmptyLabel is returned when a submission carries no text.
	ErrEmptyLabel = errors.New("usecase: empty label")
	// ErrClosed is returned when a submission arrives while the widget is closed.
	ErrClosed = errors.New("usecase: conversation is closed")
	// ErrSubmissionInFlight is returned by guarded engines while a reply is pending.
	ErrSubmissionInFlight = errors.New("usecase: submission already in flight")
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var ue *Error
	if !errors.As(err, &ue) {
		return "", false
	}
	return ue.Code, true
}
