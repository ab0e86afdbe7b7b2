package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/pkg/log"
)

// RedisBuffer keeps the history in one Redis list, newest at the head, so
// several collab nodes replay the same messages.
type RedisBuffer struct {
	client   *redis.Client
	key      string
	capacity int
}

func NewRedisBuffer(cfg config.RedisConfig, key string, capacity int) (*RedisBuffer, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisBuffer{client: client, key: key, capacity: capacity}, nil
}

func (b *RedisBuffer) Append(ctx context.Context, msg *domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.LPush(ctx, b.key, data)
	pipe.LTrim(ctx, b.key, 0, int64(b.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (b *RedisBuffer) ForUser(ctx context.Context, userID int64) ([]*domain.ChatMessage, error) {
	raw, err := b.client.LRange(ctx, b.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var out []*domain.ChatMessage
	for i := len(raw) - 1; i >= 0; i-- {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &m); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str("key", b.key).Msg("skipping malformed history entry")
			continue
		}
		if m.Involves(userID) {
			out = append(out, &m)
		}
	}
	return out, nil
}

func (b *RedisBuffer) Len(ctx context.Context) (int, error) {
	n, err := b.client.LLen(ctx, b.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read history length: %w", err)
	}
	return int(n), nil
}

func (b *RedisBuffer) Close() error {
	return b.client.Close()
}
