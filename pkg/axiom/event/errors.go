package event

import (
	"errors"
	"fmt"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// InvalidEventTypeError indicates an event type outside the closed registry.
type InvalidEventTypeError struct {
	EventType string
}

// Error implements the error interface.
func (e *InvalidEventTypeError) Error() string {
	return fmt.Sprintf("invalid event type: %q", e.EventType)
}

// UnregisteredPublisherError indicates a publish from a source that is not
// registered for the event's type.
type UnregisteredPublisherError struct {
	Source    string
	EventType string
}

// Error implements the error interface.
func (e *UnregisteredPublisherError) Error() string {
	return fmt.Sprintf("publisher %q is not registered for event type %q", e.Source, e.EventType)
}
