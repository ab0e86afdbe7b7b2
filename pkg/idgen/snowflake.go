package idgen

import (
	"fmt"
	"sync"
	"time"
)

const (
	timestampBits = 41
	nodeIDBits    = 10
	sequenceBits  = 12

	MaxNodeID   = (1 << nodeIDBits) - 1 // 1023
	maxSequence = (1 << sequenceBits) - 1

	nodeIDShift    = sequenceBits
	timestampShift = sequenceBits + nodeIDBits
)

// DefaultEpoch is 2024-01-01T00:00:00Z in unix milliseconds.
const DefaultEpoch int64 = 1704067200000

// Snowflake generates time-ordered 64-bit ids, unique per node.
type Snowflake struct {
	mu       sync.Mutex
	epoch    int64
	nodeID   int64
	sequence int64
	lastTime int64
	now      func() int64
}

// NewSnowflake creates a generator for nodeID in [0, 1023].
// epoch <= 0 selects DefaultEpoch.
func NewSnowflake(nodeID int64, epoch int64) (*Snowflake, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("node_id must be between 0 and %d, got %d", MaxNodeID, nodeID)
	}
	if epoch <= 0 {
		epoch = DefaultEpoch
	}
	return &Snowflake{
		epoch:  epoch,
		nodeID: nodeID,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID returns the next id.
func (g *Snowflake) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now < g.epoch {
		return 0, fmt.Errorf("current time is before custom epoch")
	}
	if now < g.lastTime {
		return 0, fmt.Errorf("clock moved backwards: current=%d, last=%d", now, g.lastTime)
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// sequence exhausted, spin to the next millisecond
			for now <= g.lastTime {
				now = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return ((now - g.epoch) << timestampShift) | (g.nodeID << nodeIDShift) | g.sequence, nil
}

// Parts splits an id into its wall-clock time, node id and sequence.
func (g *Snowflake) Parts(id int64) (time.Time, int64, int64) {
	ts := (id >> timestampShift) & ((1 << timestampBits) - 1)
	return time.UnixMilli(ts + g.epoch).UTC(), (id >> nodeIDShift) & MaxNodeID, id & maxSequence
}
