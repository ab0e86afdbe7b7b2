package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/weiawesome/artisans-live/archive-service/internal/domain"
)

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS events_by_entity (
		entity_type text,
		entity_id   bigint,
		event_id    text,
		event_type  text,
		actor_id    bigint,
		payload     text,
		created_at  timestamp,
		PRIMARY KEY ((entity_type, entity_id), event_id)
	) WITH CLUSTERING ORDER BY (event_id ASC)`

const insertEvent = `
	INSERT INTO events_by_entity (
		entity_type, entity_id, event_id, event_type, actor_id, payload, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

const selectEvents = `
	SELECT event_id, event_type, actor_id, payload, created_at
	FROM events_by_entity
	WHERE entity_type = ? AND entity_id = ?`

// EventRepository stores events keyed by the entity they concern. Event ids
// are ULIDs, so the clustering order is also the time order.
type EventRepository struct {
	session *gocql.Session
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(client *Client) *EventRepository {
	return &EventRepository{
		session: client.Session(),
	}
}

// EnsureSchema creates the events table when it is missing.
func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	if err := r.session.Query(createEventsTable).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to create events_by_entity: %w", err)
	}
	return nil
}

// SaveEvent inserts one event. Re-inserting the same event overwrites it, so
// redelivery is harmless.
func (r *EventRepository) SaveEvent(ctx context.Context, e *domain.Event) error {
	err := r.session.Query(insertEvent,
		e.EntityType,
		e.EntityID,
		e.ID,
		e.Type,
		e.ActorID,
		string(e.Payload),
		e.Timestamp,
	).WithContext(ctx).Exec()

	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", e.ID, err)
	}

	return nil
}

// EventsFor returns the events of one entity, oldest first.
func (r *EventRepository) EventsFor(ctx context.Context, entityType string, entityID int64) ([]*domain.Event, error) {
	iter := r.session.Query(selectEvents, entityType, entityID).WithContext(ctx).Iter()

	var (
		out     []*domain.Event
		id      string
		typ     string
		actorID int64
		payload string
	)
	e := &domain.Event{}
	for iter.Scan(&id, &typ, &actorID, &payload, &e.Timestamp) {
		e.ID = id
		e.Type = typ
		e.EntityType = entityType
		e.EntityID = entityID
		e.ActorID = actorID
		e.Payload = []byte(payload)
		out = append(out, e)
		e = &domain.Event{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return out, nil
}
