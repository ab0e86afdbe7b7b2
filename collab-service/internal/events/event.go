package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types published on the collab topic.
const (
	TypeBidCreated      = "bid.created"
	TypeBidAccepted     = "bid.accepted"
	TypeBidRejected     = "bid.rejected"
	TypeBidWithdrawn    = "bid.withdrawn"
	TypeBidDeleted      = "bid.deleted"
	TypeTargetPublished = "target.published"
	TypePointsGranted   = "points.granted"
	TypeChatMessage     = "chat.message"
)

// Event is the envelope written to Kafka.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	ActorID    int64           `json:"actor_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewEvent builds an event with a fresh ULID.
func NewEvent(eventType, entityType string, entityID, actorID int64, payload interface{}) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		raw = data
	}

	return &Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    raw,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// Key is the partition key; events of one entity stay ordered.
func (e *Event) Key() string {
	return fmt.Sprintf("%s:%d", e.EntityType, e.EntityID)
}

// Publisher sends events. Publishing is best-effort for callers.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Discard drops every event. Used when Kafka is disabled.
type Discard struct{}

func (Discard) Publish(ctx context.Context, event *Event) error {
	return nil
}

func (Discard) Close() error {
	return nil
}
