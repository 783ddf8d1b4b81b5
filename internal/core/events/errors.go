package events

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindCircularReference
	KindDepthExceeded
	KindStorage
	KindSafetyGate
	KindPermission
	KindDatabase
	KindLocked
	KindConflict
)

var (
	ErrInternal          = errors.New("internal error")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrCircularReference = errors.New("circular reference")
	ErrDepthExceeded     = errors.New("depth exceeded")
	ErrStorage           = errors.New("storage failure")
	ErrSafetyGate        = errors.New("safety gate refused")
	ErrPermission        = errors.New("permission denied")
	ErrDatabase          = errors.New("database failure")
	ErrLocked            = errors.New("locked")
	ErrConflict          = errors.New("already exists")
)

var kindSentinels = map[Kind]error{
	KindInternal:          ErrInternal,
	KindValidation:        ErrValidation,
	KindNotFound:          ErrNotFound,
	KindCircularReference: ErrCircularReference,
	KindDepthExceeded:     ErrDepthExceeded,
	KindStorage:           ErrStorage,
	KindSafetyGate:        ErrSafetyGate,
	KindPermission:        ErrPermission,
	KindDatabase:          ErrDatabase,
	KindLocked:            ErrLocked,
	KindConflict:          ErrConflict,
}

func (k Kind) String() string {
	return kindSentinels[k].Error()
}

// Error always carries the Event that captured the failure.
type Error struct {
	Kind    Kind
	Message string
	Event   *Event
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the wrapped inner error, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Fail records a failure on event and returns the Error wrapping it.
func Fail(event *Event, kind Kind, message string, data map[string]any) *Error {
	event.Fail(message, data)
	return &Error{Kind: kind, Message: message, Event: event}
}

// Failf is Fail with a formatted message and no extra data.
func Failf(event *Event, kind Kind, format string, args ...any) *Error {
	return Fail(event, kind, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches the event carried by err to parent, fails parent, and returns a
// new Error for parent. The kind of the inner Error is preserved. Errors that do
// not carry an event are recorded as failure data on parent.
func Wrap(parent *Event, err error, message string) *Error {
	var inner *Error
	if errors.As(err, &inner) {
		parent.Append(inner.Event)
		parent.Fail(message, nil)
		return &Error{Kind: inner.Kind, Message: message + ": " + inner.Message, Event: parent, Cause: err}
	}
	parent.Fail(message, map[string]any{"cause": err.Error()})
	return &Error{Kind: KindInternal, Message: message + ": " + err.Error(), Event: parent, Cause: err}
}

// Capture returns the event carried by err, or a failed event describing it.
func Capture(err error) *Event {
	var inner *Error
	if errors.As(err, &inner) && inner.Event != nil {
		return inner.Event
	}
	event := New("UNEXPECTED", "UNEXPECTED_ERROR")
	event.Fail(err.Error(), nil)
	return event
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var inner *Error
	if errors.As(err, &inner) {
		return inner.Kind
	}
	return KindInternal
}
