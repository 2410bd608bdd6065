package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// epoch is Jan 01 2024 00:00:00 UTC in milliseconds. IDs sort by
	// creation time relative to this point.
	epoch int64 = 1704067200000

	nodeBits uint8 = 10
	stepBits uint8 = 12

	nodeMask  = -1 ^ (-1 << nodeBits)
	stepMask  = -1 ^ (-1 << stepBits)
	timeShift = nodeBits + stepBits
	nodeShift = stepBits
)

// IDGenerator mints time-ordered unique IDs (snowflake layout:
// 41 bits of milliseconds, 10 bits of node, 12 bits of sequence).
// Order numbers are derived from these so they stay short, sortable
// and collision-free across instances.
type IDGenerator struct {
	mu        sync.Mutex
	timestamp int64
	nodeID    int64
	step      int64
}

// NewIDGenerator creates a generator for the given node.
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	if nodeID < 0 || nodeID > nodeMask {
		return nil, errors.New("invalid node ID")
	}
	return &IDGenerator{nodeID: nodeID}, nil
}

// NextID generates a new ID.
func (g *IDGenerator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	if g.timestamp == now {
		g.step = (g.step + 1) & stepMask
		if g.step == 0 {
			// sequence exhausted within this millisecond
			for now <= g.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.step = 0
	}

	g.timestamp = now

	return ((now - epoch) << timeShift) |
		(g.nodeID << nodeShift) |
		g.step
}

// Parse splits an ID into its timestamp (unix millis), node and sequence.
func Parse(id int64) (timestamp, nodeID, step int64) {
	step = id & stepMask
	nodeID = (id >> nodeShift) & nodeMask
	timestamp = (id >> timeShift) + epoch
	return
}
