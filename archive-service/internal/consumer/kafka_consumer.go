package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/weiawesome/artisans-live/archive-service/internal/config"
	"github.com/weiawesome/artisans-live/archive-service/internal/domain"
	"github.com/weiawesome/artisans-live/pkg/log"
)

// EventStore persists decoded events.
type EventStore interface {
	SaveEvent(ctx context.Context, e *domain.Event) error
}

// Consumer reads collab events from Kafka and archives them.
type Consumer struct {
	consumer *kafka.Consumer
	topic    string
	groupID  string
	store    EventStore
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(cfg config.KafkaConfig, store EventStore) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       cfg.Brokers,
		"group.id":                cfg.GroupID,
		"auto.offset.reset":       cfg.AutoOffsetReset,
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
		"max.poll.interval.ms":    cfg.MaxPollIntervalMs,
		"session.timeout.ms":      cfg.SessionTimeoutMs,
		"heartbeat.interval.ms":   cfg.HeartbeatIntervalMs,
		"fetch.min.bytes":         cfg.FetchMinBytes,
		"fetch.wait.max.ms":       cfg.FetchMaxWaitMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		consumer: c,
		topic:    cfg.Topic,
		groupID:  cfg.GroupID,
		store:    store,
	}, nil
}

// Run polls until ctx is cancelled or Kafka reports a fatal error.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", c.topic, err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("topic", c.topic).Str("group", c.groupID).Msg("kafka consumer started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka consumer stopping")
			return nil
		default:
		}

		ev := c.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := handle(ctx, c.store, e.Value); err != nil {
				l.Error().Err(err).
					Int32("partition", e.TopicPartition.Partition).
					Str("offset", e.TopicPartition.Offset.String()).
					Msg("failed to archive event")
			}
		case kafka.Error:
			l.Warn().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka error")
			if e.IsFatal() {
				return fmt.Errorf("fatal kafka error: %w", e)
			}
		default:
			// offsets committed, rebalances
		}
	}
}

// handle decodes and stores one record. Malformed records are logged and
// skipped so a single bad producer cannot wedge the partition.
func handle(ctx context.Context, store EventStore, value []byte) error {
	e, err := domain.DecodeEvent(value)
	if errors.Is(err, domain.ErrMalformedEvent) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int("size", len(value)).Msg("skipping malformed event")
		return nil
	}
	if err != nil {
		return err
	}

	if err := store.SaveEvent(ctx, e); err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().
		Str("event_id", e.ID).
		Str("event_type", e.Type).
		Str("entity_type", e.EntityType).
		Int64("entity_id", e.EntityID).
		Msg("event archived")
	return nil
}

// Close closes the Kafka consumer.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}
