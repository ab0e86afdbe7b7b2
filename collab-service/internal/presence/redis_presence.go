package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/pkg/log"
)

var ErrNotPresent = errors.New("user not present")

type RedisPresence struct {
	client            *redis.Client
	advertiseAddress  string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{} // keys managed by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

func NewRedisPresence(cfg config.RedisConfig, advertiseAddress string) (*RedisPresence, error) {
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

	ttl := cfg.KeyTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	interval := cfg.HeartbeatInterval
	if interval <= 0 {
		interval = ttl / 3
	}

	return &RedisPresence{
		client:            client,
		advertiseAddress:  advertiseAddress,
		prefix:            cfg.PresencePrefix,
		keyTTL:            ttl,
		heartbeatInterval: interval,
		managedKeys:       make(map[string]struct{}),
	}, nil
}

func (r *RedisPresence) keyFor(userID int64) string {
	return fmt.Sprintf("%s:user:%d", r.prefix, userID)
}

func (r *RedisPresence) Register(ctx context.Context, userID int64) error {
	key := r.keyFor(userID)

	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Int64(log.FieldUserID, userID).Str("address", r.advertiseAddress).Msg("registered presence")
	return nil
}

func (r *RedisPresence) Deregister(ctx context.Context, userID int64) error {
	key := r.keyFor(userID)

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	// Only remove the key if it still points at this node.
	addr, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read presence: %w", err)
	}
	if addr != r.advertiseAddress {
		return nil
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to deregister presence: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().Int64(log.FieldUserID, userID).Msg("deregistered presence")
	return nil
}

func (r *RedisPresence) Lookup(ctx context.Context, userID int64) (string, error) {
	addr, err := r.client.Get(ctx, r.keyFor(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("user %d: %w", userID, ErrNotPresent)
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup presence: %w", err)
	}
	return addr, nil
}

func (r *RedisPresence) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("presence heartbeat started")
	return nil
}

func (r *RedisPresence) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisPresence) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	if len(keys) == 0 {
		return
	}

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Set(ctx, key, r.advertiseAddress, r.keyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l := log.L()
		l.Error().Err(err).Int("keys", len(keys)).Msg("failed to refresh presence keys")
	}
}

func (r *RedisPresence) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisPresence) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}
