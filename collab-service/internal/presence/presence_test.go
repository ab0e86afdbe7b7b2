package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
)

func newPresence(t *testing.T, mr *miniredis.Miniredis, addr string) *RedisPresence {
	t.Helper()
	p, err := NewRedisPresence(config.RedisConfig{
		Address:           mr.Addr(),
		PresencePrefix:    "test:presence",
		KeyTTL:            30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
	}, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRegisterLookupDeregister(t *testing.T) {
	mr := miniredis.RunT(t)
	p := newPresence(t, mr, "node-a:8090")
	ctx := context.Background()

	require.NoError(t, p.Register(ctx, 42))

	addr, err := p.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "node-a:8090", addr)
	assert.Equal(t, 30*time.Second, mr.TTL("test:presence:user:42"))

	require.NoError(t, p.Deregister(ctx, 42))
	_, err = p.Lookup(ctx, 42)
	assert.ErrorIs(t, err, ErrNotPresent)
}

func TestKeyExpiresWithoutHeartbeat(t *testing.T) {
	mr := miniredis.RunT(t)
	p := newPresence(t, mr, "node-a:8090")
	ctx := context.Background()

	require.NoError(t, p.Register(ctx, 1))
	mr.FastForward(31 * time.Second)

	_, err := p.Lookup(ctx, 1)
	assert.ErrorIs(t, err, ErrNotPresent)
}

func TestRefreshRenewsManagedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	p := newPresence(t, mr, "node-a:8090")
	ctx := context.Background()

	require.NoError(t, p.Register(ctx, 1))
	mr.FastForward(20 * time.Second)
	p.refreshKeys(ctx)
	mr.FastForward(20 * time.Second)

	addr, err := p.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "node-a:8090", addr)
}

func TestDeregisterLeavesOtherNodesKey(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newPresence(t, mr, "node-a:8090")
	b := newPresence(t, mr, "node-b:8090")
	ctx := context.Background()

	require.NoError(t, a.Register(ctx, 5))
	require.NoError(t, b.Register(ctx, 5))
	require.NoError(t, a.Deregister(ctx, 5))

	addr, err := b.Lookup(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "node-b:8090", addr)
}

func TestNoop(t *testing.T) {
	var p Presence = Noop{}
	require.NoError(t, p.Register(context.Background(), 1))
	_, err := p.Lookup(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotPresent)
}
