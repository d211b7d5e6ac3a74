// Package snapshot publishes the sampling loop's most recent telemetry
// state for readers on other goroutines. The monitor, the live stream and
// the interactive commands all read here instead of touching game memory.
package snapshot

import (
	"sync"
	"time"

	"github.com/rbignon/ER-Route-tracker/pkg/core"
)

// Snapshot is one published view of the tracker state. Latency on the
// sampling path matters, so this is a plain value copied under a short
// lock, never a live reference.
type Snapshot struct {
	Recording  bool
	RouteName  string
	PointCount int

	// Last resolved player state. PosValid is false until the first
	// successful position read of the session.
	PosValid  bool
	Local     [3]float32
	Global    [3]float32
	MapID     core.MapID
	OnTorrent bool

	// Session counters.
	SamplesTaken  int
	SkippedTicks  int
	LastElapsedMs uint64
	Deaths        uint32
	IGT           uint32

	UpdatedAt time.Time
}

// Cache holds the latest snapshot.
type Cache struct {
	mu   sync.RWMutex
	snap Snapshot
}

func New() *Cache {
	return &Cache{}
}

// Publish replaces the current snapshot.
func (c *Cache) Publish(s Snapshot) {
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

// Get returns a copy of the latest snapshot.
func (c *Cache) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}
