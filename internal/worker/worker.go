// Package worker owns the sink side of the tracker. Recording events are
// parsed into queue entries by the dispatch handlers; a single drain
// goroutine writes them to the database, InfluxDB and the live stream so
// the sampling loop never waits on I/O.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbignon/ER-Route-tracker/internal/influx"
	"github.com/rbignon/ER-Route-tracker/internal/library"
	"github.com/rbignon/ER-Route-tracker/internal/model"
	"github.com/rbignon/ER-Route-tracker/internal/queue"
	"github.com/rbignon/ER-Route-tracker/internal/session"
	"github.com/rbignon/ER-Route-tracker/internal/stream"
	"github.com/rbignon/ER-Route-tracker/pkg/core"
	"github.com/rbignon/ER-Route-tracker/pkg/streaming"
)

// Sample is one accepted trajectory point with the wall-clock time it
// was taken. Point timestamps are relative to the recording start, so
// the wall time travels alongside for the time-series sinks.
type Sample struct {
	Point core.RoutePoint
	At    time.Time
}

// PerfReport bundles one monitor pass: the database row and the influx
// fields. The monitor builds both, the worker persists them.
type PerfReport struct {
	Row    model.TrackerPerformance
	Fields influx.Performance
}

// Dependencies holds the sinks the worker writes to. Nil members are
// skipped, so a tracker without a database or viewer still runs.
type Dependencies struct {
	Session *session.Context
	Library *library.Store
	Influx  *influx.Manager
	Stream  *stream.Client
	Log     *slog.Logger
}

// Queues groups the per-sink buffers drained by the write pass.
type Queues struct {
	Starts *queue.Queue[streaming.RouteStartPayload]
	Points *queue.Queue[Sample]
	Saves  *queue.Queue[streaming.RouteSavedPayload]
	Events *queue.Queue[model.TrackerEvent]
	Perf   *queue.Queue[PerfReport]
}

// Stats is a point-in-time view of the worker for the monitor.
type Stats struct {
	QueuedPoints  int
	QueuedEvents  int
	StreamDepth   int
	PointsWritten uint64
	EventsWritten uint64
	PerfWritten   uint64
	LastWriteMs   float32
}

// Manager manages the sink queues and the drain goroutine. Enqueue
// methods and Stats are safe from any goroutine.
type Manager struct {
	deps   Dependencies
	queues Queues

	flushInterval time.Duration

	mu            sync.Mutex
	pointsWritten uint64
	eventsWritten uint64
	perfWritten   uint64
	lastWriteMs   float32
	stopped       bool

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewManager creates a worker around the given sinks. flushInterval <= 0
// selects one second.
func NewManager(deps Dependencies, flushInterval time.Duration) *Manager {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		deps: deps,
		queues: Queues{
			Starts: queue.New[streaming.RouteStartPayload](),
			Points: queue.New[Sample](),
			Saves:  queue.New[streaming.RouteSavedPayload](),
			Events: queue.New[model.TrackerEvent](),
			Perf:   queue.New[PerfReport](),
		},
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// EnqueueSample queues one accepted trajectory point.
func (m *Manager) EnqueueSample(s Sample) {
	m.queues.Points.Push(s)
}

// EnqueueEvent queues one session event row.
func (m *Manager) EnqueueEvent(e model.TrackerEvent) {
	m.queues.Events.Push(e)
}

// EnqueuePerf queues one monitor pass for persistence.
func (m *Manager) EnqueuePerf(r PerfReport) {
	m.queues.Perf.Push(r)
}

// Start launches the drain goroutine.
func (m *Manager) Start() {
	go m.run()
}

// Stop drains whatever is still queued and shuts the goroutine down.
// Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		<-m.doneChan
		return
	}
	m.stopped = true
	m.mu.Unlock()

	close(m.stopChan)
	<-m.doneChan
}

// Stats returns current queue depths and write counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		QueuedPoints:  m.queues.Points.Len(),
		QueuedEvents:  m.queues.Events.Len(),
		PointsWritten: m.pointsWritten,
		EventsWritten: m.eventsWritten,
		PerfWritten:   m.perfWritten,
		LastWriteMs:   m.lastWriteMs,
	}
	if m.deps.Stream != nil {
		s.StreamDepth = m.deps.Stream.Depth()
	}
	return s
}

func (m *Manager) run() {
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			// final drain so a save right before shutdown still lands
			m.Flush()
			close(m.doneChan)
			return
		case <-ticker.C:
			m.Flush()
		}
	}
}

// Flush drains every queue into the sinks once. Starts go out before
// points and points before saves, so the viewer sees a route in order.
// The drain goroutine calls this on its ticker; tests call it directly.
func (m *Manager) Flush() {
	start := time.Now()
	sessionID := m.deps.Session.Get().ID

	var written uint64

	for _, p := range m.queues.Starts.Drain() {
		if m.deps.Stream != nil {
			if err := m.deps.Stream.StartRoute(p); err != nil {
				m.deps.Log.Warn("stream start announcement failed", "error", err)
			}
		}
		written++
	}

	var points uint64
	for _, s := range m.queues.Points.Drain() {
		if m.deps.Influx != nil {
			pt := influx.SamplePoint(sessionID, s.Point, s.At)
			if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketRouteSamples, pt); err != nil {
				m.deps.Log.Debug("influx sample write failed", "error", err)
			}
		}
		if m.deps.Stream != nil {
			if err := m.deps.Stream.SendPoint(sessionID, s.Point); err != nil {
				m.deps.Log.Debug("stream point send failed", "error", err)
			}
		}
		points++
	}

	for _, p := range m.queues.Saves.Drain() {
		if m.deps.Stream != nil {
			if err := m.deps.Stream.RouteSaved(p); err != nil {
				m.deps.Log.Warn("stream saved notification failed", "error", err)
			}
		}
		written++
	}

	var events uint64
	for _, e := range m.queues.Events.Drain() {
		if m.deps.Library != nil {
			if err := m.deps.Library.RecordEvent(e); err != nil {
				m.deps.Log.Error("event row write failed", "event", e.Name, "error", err)
			}
		}
		events++
	}

	var perf uint64
	for _, r := range m.queues.Perf.Drain() {
		if m.deps.Library != nil {
			if err := m.deps.Library.RecordPerformance(r.Row); err != nil {
				m.deps.Log.Error("performance row write failed", "error", err)
			}
		}
		if m.deps.Influx != nil {
			pt := influx.PerformancePoint(sessionID, r.Fields, r.Row.Time)
			if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketTrackerPerformance, pt); err != nil {
				m.deps.Log.Debug("influx perf write failed", "error", err)
			}
		}
		perf++
	}

	if written == 0 && points == 0 && events == 0 && perf == 0 {
		return
	}

	elapsed := float32(time.Since(start).Microseconds()) / 1000.0

	m.mu.Lock()
	m.pointsWritten += points
	m.eventsWritten += events
	m.perfWritten += perf
	m.lastWriteMs = elapsed
	m.mu.Unlock()
}
