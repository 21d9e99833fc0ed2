// Package workflow runs durable, multi-step functions triggered by events.
//
// A function is a plain Go handler split into named steps. The output of each
// step is checkpointed in the relational store, so when the whole function is
// retried, steps that already succeeded are replayed from their checkpoint
// instead of being executed again. Runs are delivered and retried by asynq,
// and may be serialized per concurrency key (for example per user).
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"ts"`
}

// NewEvent builds an event with a fresh ID. data is marshalled to JSON.
func NewEvent(name string, data any) (Event, error) {
	return NewEventWithID(uuid.NewString(), name, data)
}

// NewEventWithID builds an event with a caller chosen ID. Sending two events
// with the same ID starts a single run per subscribed function.
func NewEventWithID(id, name string, data any) (Event, error) {
	if id == "" {
		return Event{}, errors.New("event id can't be empty")
	}

	if name == "" {
		return Event{}, errors.New("event name can't be empty")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode event data, %w", err)
	}

	return Event{
		ID:        id,
		Name:      name,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the event data into v
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return errors.New("event has no data")
	}

	return json.Unmarshal(e.Data, v)
}

// KeyFromData returns a concurrency key function reading a top level
// string field of the event data, e.g. KeyFromData("userId").
func KeyFromData(field string) func(Event) (string, error) {
	return func(e Event) (string, error) {
		var data map[string]any
		if err := e.Decode(&data); err != nil {
			return "", fmt.Errorf("failed to decode event data, %w", err)
		}

		v, ok := data[field].(string)
		if !ok || v == "" {
			return "", fmt.Errorf("event data has no '%s' string field", field)
		}

		return v, nil
	}
}
