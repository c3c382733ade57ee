package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Payload is the ordered key/value map carried by an event. Iteration and
// JSON serialization preserve insertion order.
type Payload = *orderedmap.OrderedMap[string, any]

// NewPayload builds a payload from key/value pairs, in order.
func NewPayload(pairs ...orderedmap.Pair[string, any]) Payload {
	return orderedmap.New[string, any](orderedmap.WithInitialData(pairs...))
}

// KV constructs a single payload pair.
func KV(key string, value any) orderedmap.Pair[string, any] {
	return orderedmap.Pair[string, any]{Key: key, Value: value}
}

// Event is the unit of communication on the bus. Events are immutable once
// constructed; derive causally related events with Correlate instead of
// mutating fields.
type Event struct {
	Type          string    `json:"event_type"`
	Payload       Payload   `json:"payload"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
}

// Option configures event creation.
type Option func(*Event)

// WithCorrelationID sets a specific correlation ID (default: new UUID).
func WithCorrelationID(id string) Option {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.Timestamp = t
	}
}

// New creates an event. The type is validated at publish/subscribe time, not
// here. A correlation ID is generated when none is supplied.
func New(eventType, source string, payload Payload, opts ...Option) *Event {
	e := &Event{
		Type:      eventType,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Payload == nil {
		e.Payload = NewPayload()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = uuid.New().String()
	}
	return e
}

// Correlate derives a new event that retains evt's correlation ID. Empty
// newType or newSource and a nil newPayload fall back to the original's
// values.
func Correlate(evt *Event, newType, newSource string, newPayload Payload) *Event {
	if newType == "" {
		newType = evt.Type
	}
	if newSource == "" {
		newSource = evt.Source
	}
	if newPayload == nil {
		newPayload = evt.Payload
	}
	return New(newType, newSource, newPayload, WithCorrelationID(evt.CorrelationID))
}

// ToJSON serializes the event, preserving payload key order.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes an event produced by ToJSON.
func FromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Payload == nil {
		e.Payload = NewPayload()
	}
	return &e, nil
}

// PayloadMap flattens the payload into a plain map, losing key order. Useful
// at persistence boundaries where order is not significant.
func (e *Event) PayloadMap() map[string]any {
	m := make(map[string]any, e.Payload.Len())
	for pair := e.Payload.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}

// NewSystemStart builds a system.start event.
func NewSystemStart(source, version string, configuration map[string]any) *Event {
	return New(TypeSystemStart, source, NewPayload(
		KV("version", version),
		KV("configuration", configuration),
		KV("components", []string{}),
	))
}

// NewSystemShutdown builds a system.shutdown event.
func NewSystemShutdown(source, reason string, graceful bool) *Event {
	return New(TypeSystemShutdown, source, NewPayload(
		KV("reason", reason),
		KV("graceful", graceful),
	))
}

// NewConversationTurn builds a conversation.turn event. intent may be nil
// when the turn had no detected intent; processingMs is the turn duration in
// milliseconds.
func NewConversationTurn(source, sessionID, userInput, assistantResponse string, intent map[string]any, processingMs float64) *Event {
	return New(TypeConversationTurn, source, NewPayload(
		KV("session_id", sessionID),
		KV("user_input", userInput),
		KV("assistant_response", assistantResponse),
		KV("intent", intent),
		KV("processing_time", processingMs),
	))
}

// NewStateUpdated builds a state.updated event.
func NewStateUpdated(source string, changes map[string]any, entityType, entityID string) *Event {
	return New(TypeStateUpdated, source, NewPayload(
		KV("changes", changes),
		KV("entity_type", entityType),
		KV("entity_id", entityID),
	))
}
