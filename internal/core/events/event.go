package events

import (
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state of an Event.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Event is one node of the hierarchical success/failure record produced by
// every operation. A parent exclusively owns its SubEvents.
type Event struct {
	ID        string         `json:"id" bson:"id"`
	Type      string         `json:"type" bson:"type"`
	Status    Status         `json:"status" bson:"status"`
	Data      map[string]any `json:"data,omitempty" bson:"data,omitempty"`
	Starts    time.Time      `json:"starts" bson:"starts"`
	Ends      *time.Time     `json:"ends,omitempty" bson:"ends,omitempty"`
	SubEvents []*Event       `json:"sub_events" bson:"sub_events"`
}

// New creates a pending event.
func New(id, typ string) *Event {
	return &Event{
		ID:        id,
		Type:      typ,
		Status:    StatusUnknown,
		Starts:    time.Now(),
		SubEvents: []*Event{},
	}
}

// NewRunID returns a unique identifier used to correlate the events of one batch run.
func NewRunID() string {
	return uuid.NewString()
}

// Child creates a new event and attaches it as the last sub-event.
func (e *Event) Child(id, typ string) *Event {
	child := New(id, typ)
	e.Append(child)
	return child
}

// Append attaches events in order. Nil events and events already attached
// directly to e are ignored.
func (e *Event) Append(subs ...*Event) {
	for _, s := range subs {
		if s != nil && s != e && !e.owns(s) {
			e.SubEvents = append(e.SubEvents, s)
		}
	}
}

func (e *Event) owns(s *Event) bool {
	for _, existing := range e.SubEvents {
		if existing == s {
			return true
		}
	}
	return false
}

// Set stores one data entry on the event.
func (e *Event) Set(key string, value any) *Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// Succeed records success. If any descendant failed the event is recorded as a
// failure instead, so failures always roll up. Terminal status is set once.
func (e *Event) Succeed() {
	if e.Terminal() {
		return
	}
	if failed := e.failedDescendant(); failed != nil {
		e.Fail("sub-event "+failed.Type+" failed", nil)
		return
	}
	e.finish(StatusSuccess)
}

// Fail records a failure with a message merged into Data under "error".
func (e *Event) Fail(message string, data map[string]any) {
	if e.Terminal() {
		return
	}
	if e.Data == nil {
		e.Data = make(map[string]any, len(data)+1)
	}
	for k, v := range data {
		e.Data[k] = v
	}
	e.Data["error"] = message
	e.finish(StatusFailure)
}

func (e *Event) finish(status Status) {
	now := time.Now()
	e.Status = status
	e.Ends = &now
}

// Terminal reports whether Succeed or Fail has been called.
func (e *Event) Terminal() bool {
	return e.Status == StatusSuccess || e.Status == StatusFailure
}

// Failed reports whether this event or any descendant failed.
func (e *Event) Failed() bool {
	return e.Status == StatusFailure || e.failedDescendant() != nil
}

func (e *Event) failedDescendant() *Event {
	for _, s := range e.SubEvents {
		if s.Status == StatusFailure {
			return s
		}
		if f := s.failedDescendant(); f != nil {
			return f
		}
	}
	return nil
}

// Find returns the first event of the given type in depth-first order, including e.
func (e *Event) Find(typ string) *Event {
	if e.Type == typ {
		return e
	}
	for _, s := range e.SubEvents {
		if f := s.Find(typ); f != nil {
			return f
		}
	}
	return nil
}

// SubTypes lists the types of the direct sub-events in order.
func (e *Event) SubTypes() []string {
	types := make([]string, len(e.SubEvents))
	for i, s := range e.SubEvents {
		types[i] = s.Type
	}
	return types
}
