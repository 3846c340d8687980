package scheduling

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it without string matching.
type Kind string

const (
	KindRangeTooLarge          Kind = "RangeTooLarge"
	KindLeadTimeViolation      Kind = "LeadTimeViolation"
	KindInvalidDuration        Kind = "InvalidDuration"
	KindProviderUnavailable    Kind = "ProviderUnavailable"
	KindProviderOnLeave        Kind = "ProviderOnLeave"
	KindOutsideAvailability    Kind = "OutsideAvailability"
	KindSlotConflict           Kind = "SlotConflict"
	KindLeaveConflict          Kind = "LeaveConflict"
	KindLeaveInPast            Kind = "LeaveInPast"
	KindLeaveTooLong           Kind = "LeaveTooLong"
	KindLeaveAlreadyStarted    Kind = "LeaveAlreadyStarted"
	KindAlreadyElapsed         Kind = "AlreadyElapsed"
	KindNotFound               Kind = "NotFound"
	KindUnauthorized           Kind = "Unauthorized"
	KindInvalidState           Kind = "InvalidState"
	KindInvalidArgument        Kind = "InvalidArgument"
	KindTemporarilyUnavailable Kind = "TemporarilyUnavailable"
	KindInternal               Kind = "Internal"
)

// Sentinels for errors.Is checks. Only the Kind is compared.
var (
	ErrRangeTooLarge          = &Error{Kind: KindRangeTooLarge}
	ErrLeadTimeViolation      = &Error{Kind: KindLeadTimeViolation}
	ErrInvalidDuration        = &Error{Kind: KindInvalidDuration}
	ErrProviderUnavailable    = &Error{Kind: KindProviderUnavailable}
	ErrProviderOnLeave        = &Error{Kind: KindProviderOnLeave}
	ErrOutsideAvailability    = &Error{Kind: KindOutsideAvailability}
	ErrSlotConflict           = &Error{Kind: KindSlotConflict}
	ErrLeaveConflict          = &Error{Kind: KindLeaveConflict}
	ErrLeaveInPast            = &Error{Kind: KindLeaveInPast}
	ErrLeaveTooLong           = &Error{Kind: KindLeaveTooLong}
	ErrLeaveAlreadyStarted    = &Error{Kind: KindLeaveAlreadyStarted}
	ErrAlreadyElapsed         = &Error{Kind: KindAlreadyElapsed}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized}
	ErrInvalidState           = &Error{Kind: KindInvalidState}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
	ErrTemporarilyUnavailable = &Error{Kind: KindTemporarilyUnavailable}
	ErrInternal               = &Error{Kind: KindInternal}
)

// Error is a user-facing scheduling failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error of the given kind.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind of err, Internal for anything that is not an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is the text safe to return to callers.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal error"
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}
