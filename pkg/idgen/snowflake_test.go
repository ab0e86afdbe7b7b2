package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeRejectsNodeOutOfRange(t *testing.T) {
	_, err := NewSnowflake(-1, 0)
	require.Error(t, err)

	_, err = NewSnowflake(MaxNodeID+1, 0)
	require.Error(t, err)
}

func TestNextIDIsMonotonic(t *testing.T) {
	g, err := NewSnowflake(7, 0)
	require.NoError(t, err)

	var last int64
	for i := 0; i < 10000; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		require.Greater(t, id, last)
		last = id
	}
}

func TestNextIDUniqueAcrossGoroutines(t *testing.T) {
	g, err := NewSnowflake(1, 0)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id, err := g.NextID()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 8*500)
}

func TestPartsRoundTrip(t *testing.T) {
	g, err := NewSnowflake(42, 0)
	require.NoError(t, err)

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	g.now = func() int64 { return fixed }

	first, err := g.NextID()
	require.NoError(t, err)
	second, err := g.NextID()
	require.NoError(t, err)

	ts, node, seq := g.Parts(second)
	assert.Equal(t, fixed, ts.UnixMilli())
	assert.Equal(t, int64(42), node)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, first+1, second)
}

func TestNextIDClockBackwards(t *testing.T) {
	g, err := NewSnowflake(0, 0)
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	g.now = func() int64 { return now }
	_, err = g.NextID()
	require.NoError(t, err)

	g.now = func() int64 { return now - 10 }
	_, err = g.NextID()
	assert.Error(t, err)
}
