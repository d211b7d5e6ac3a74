package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbignon/ER-Route-tracker/internal/session"
	"github.com/rbignon/ER-Route-tracker/internal/snapshot"
	"github.com/rbignon/ER-Route-tracker/internal/worker"
)

func newTestService(t *testing.T, interval time.Duration, statusPath string) (*Service, *worker.Manager, *session.Context, *snapshot.Cache) {
	t.Helper()

	sess := session.NewContext()
	sess.Begin("eldenring.exe", 4242, "1.12.0")

	snap := snapshot.New()
	w := worker.NewManager(worker.Dependencies{Session: sess}, time.Hour)

	ticks := &TickTimer{}
	ticks.Observe(1500 * time.Microsecond)

	s, err := NewService(Dependencies{
		Session:    sess,
		Snap:       snap,
		Worker:     w,
		Ticks:      ticks,
		StatusPath: statusPath,
	}, interval)
	require.NoError(t, err)
	return s, w, sess, snap
}

func TestTickTimer(t *testing.T) {
	var tt TickTimer
	if tt.LastTickDuration() != 0 {
		t.Fatalf("fresh timer should read zero, got %v", tt.LastTickDuration())
	}
	tt.Observe(2500 * time.Microsecond)
	assert.Equal(t, 2500*time.Microsecond, tt.LastTickDuration())
}

func TestHealthBuildsReport(t *testing.T) {
	s, w, sess, snap := newTestService(t, time.Minute, "")

	snap.Publish(snapshot.Snapshot{
		Recording:    true,
		PointCount:   7,
		SamplesTaken: 7,
		SkippedTicks: 1,
		Deaths:       3,
		IGT:          123456,
	})
	w.EnqueueSample(worker.Sample{At: time.Now()})
	w.EnqueueSample(worker.Sample{At: time.Now()})

	lines, report := s.Health(true, true, true)

	assert.Len(t, lines, 3)
	assert.Equal(t, sess.Get().ID, report.Row.SessionID)
	assert.Equal(t, uint16(2), report.Row.Buffers.Points)
	assert.Equal(t, float32(1.5), report.Row.LastTickDurationMs)
	assert.Equal(t, 2, report.Fields.QueuedPoints)
	assert.Equal(t, uint32(3), report.Fields.Deaths)
	assert.Equal(t, uint32(123456), report.Fields.IGTMs)
}

func TestHealthWithoutSections(t *testing.T) {
	s, _, _, _ := newTestService(t, time.Minute, "")

	lines, report := s.Health(false, false, false)

	assert.Empty(t, lines)
	assert.NotEmpty(t, report.Row.SessionID)
}

func TestStartStopLifecycle(t *testing.T) {
	s, _, _, _ := newTestService(t, 10*time.Millisecond, "")

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	// a second Start is a no-op while running
	require.NoError(t, s.Start())

	s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.IsRunning() {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, s.IsRunning())
}

func TestRunLoopWritesStatusFileAndPerf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.txt")
	s, w, _, snap := newTestService(t, 10*time.Millisecond, path)

	snap.Publish(snapshot.Snapshot{Recording: true, PointCount: 2})

	require.NoError(t, s.Start())
	defer s.Stop()

	var data []byte
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, _ = os.ReadFile(path)
		if len(data) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotEmpty(t, data, "monitor should have written the status file")
	assert.Contains(t, string(data), "PointCount")

	perfSeen := false
	for time.Now().Before(deadline) {
		w.Flush()
		if w.Stats().PerfWritten > 0 {
			perfSeen = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, perfSeen, "monitor should have queued a perf report")
}
