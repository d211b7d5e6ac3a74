package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_EmptyByDefault(t *testing.T) {
	c := New()

	s := c.Get()
	assert.False(t, s.Recording)
	assert.False(t, s.PosValid)
	assert.Zero(t, s.PointCount)
}

func TestCache_PublishAndGet(t *testing.T) {
	c := New()

	c.Publish(Snapshot{
		Recording:  true,
		RouteName:  "route_2026-08-23_14-05-01",
		PointCount: 12,
		PosValid:   true,
		Local:      [3]float32{10, 20, 30},
		Global:     [3]float32{1010, 20, 2030},
		MapID:      0x3C2A2600,
		OnTorrent:  true,
		UpdatedAt:  time.Now(),
	})

	s := c.Get()
	assert.True(t, s.Recording)
	assert.Equal(t, 12, s.PointCount)
	assert.Equal(t, [3]float32{1010, 20, 2030}, s.Global)
	assert.True(t, s.OnTorrent)
}

func TestCache_PublishReplaces(t *testing.T) {
	c := New()

	c.Publish(Snapshot{PointCount: 1})
	c.Publish(Snapshot{PointCount: 2})

	assert.Equal(t, 2, c.Get().PointCount)
}

func TestCache_ConcurrentReaders(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Publish(Snapshot{PointCount: n})
		}(i)
		go func() {
			defer wg.Done()
			_ = c.Get()
		}()
	}
	wg.Wait()
}
