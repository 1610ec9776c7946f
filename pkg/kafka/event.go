package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event is the envelope carried by every message the storefront publishes.
// AggregateID is the shopper session; it doubles as the partition key.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EventOption adjusts an event built by NewEvent.
type EventOption func(*Event)

// WithCorrelationID tags the event with a request correlation ID. An empty ID
// leaves the event untagged.
func WithCorrelationID(id string) EventOption {
	return func(e *Event) {
		if id != "" {
			e.CorrelationID = id
		}
	}
}

// WithMetadata attaches a free-form attribute.
func WithMetadata(key, value string) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, 1)
		}
		e.Metadata[key] = value
	}
}

// WithVersion sets the payload schema version. Events default to version 1.
func WithVersion(v int) EventOption {
	return func(e *Event) { e.Version = v }
}

// NewEvent encodes data as the payload of a new event.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any, opts ...EventOption) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	e := &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Key is the message key. Events of one session share a partition.
func (e *Event) Key() []byte {
	return []byte(e.AggregateID)
}

// headers lets consumers route without decoding the payload.
func (e *Event) headers() []kafka.Header {
	h := []kafka.Header{
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "source", Value: []byte(e.Source)},
	}
	if e.CorrelationID != "" {
		h = append(h, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}
	return h
}

// DecodeEvent parses an envelope read from a topic.
func DecodeEvent(raw []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}

// DecodeData decodes the payload into target.
func (e *Event) DecodeData(target any) error {
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
