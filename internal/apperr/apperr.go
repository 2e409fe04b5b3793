package apperr

import (
	"errors"
	"fmt"
)

// Kind names a class of failure that callers can branch on.
type Kind string

const (
	InvalidDuration     Kind = "invalid_duration"
	InvalidInterval     Kind = "invalid_interval"
	InvalidInput        Kind = "invalid_input"
	TimerAlreadyRunning Kind = "timer_already_running"
	TimerNotRunning     Kind = "timer_not_running"
	TimesheetNotMutable Kind = "timesheet_not_mutable"
	EntryNotMutable     Kind = "entry_not_mutable"
	EmptyTimesheet      Kind = "empty_timesheet"
	WeekNotElapsed      Kind = "week_not_elapsed"
	MissingReason       Kind = "missing_reason"
	AlreadyProcessed    Kind = "already_processed"
	NotAuthorized       Kind = "not_authorized"
	NotFound            Kind = "not_found"
)

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrInvalidDuration     = &Error{Kind: InvalidDuration, Message: "duration must be a positive number of minutes"}
	ErrInvalidInterval     = &Error{Kind: InvalidInterval, Message: "end time must be after start time"}
	ErrInvalidInput        = &Error{Kind: InvalidInput, Message: "invalid input"}
	ErrTimerAlreadyRunning = &Error{Kind: TimerAlreadyRunning, Message: "a timer is already running"}
	ErrTimerNotRunning     = &Error{Kind: TimerNotRunning, Message: "no running timer"}
	ErrTimesheetNotMutable = &Error{Kind: TimesheetNotMutable, Message: "timesheet is not open for changes"}
	ErrEntryNotMutable     = &Error{Kind: EntryNotMutable, Message: "entry has already been decided"}
	ErrEmptyTimesheet      = &Error{Kind: EmptyTimesheet, Message: "timesheet has no entries"}
	ErrWeekNotElapsed      = &Error{Kind: WeekNotElapsed, Message: "week has not ended yet"}
	ErrMissingReason       = &Error{Kind: MissingReason, Message: "rejection reason is required"}
	ErrAlreadyProcessed    = &Error{Kind: AlreadyProcessed, Message: "already processed"}
	ErrNotAuthorized       = &Error{Kind: NotAuthorized, Message: "not authorized"}
	ErrNotFound            = &Error{Kind: NotFound, Message: "not found"}
)

// Error is a workflow failure with a machine readable kind.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Details: details, Cause: e.Cause}
}

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNoop reports whether err only signals that nothing had to change.
func IsNoop(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}
