package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrMalformedEvent = errors.New("malformed event")

// Event is a collab-service domain event as it appears on the topic.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	ActorID    int64           `json:"actor_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// DecodeEvent parses and validates one record value.
func DecodeEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if _, err := ulid.ParseStrict(e.ID); err != nil {
		return nil, fmt.Errorf("%w: id %q: %v", ErrMalformedEvent, e.ID, err)
	}
	if e.Type == "" || e.EntityType == "" {
		return nil, fmt.Errorf("%w: type and entity_type are required", ErrMalformedEvent)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = ulid.Time(ulid.MustParse(e.ID).Time())
	}
	return &e, nil
}
