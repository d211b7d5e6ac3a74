// Package monitor reports sampler health on a fixed cadence: a log
// line, a status file, a performance row and influx point queued
// through the worker, and OTel gauges. It reads the snapshot cache and
// the worker stats only, never the engine.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/rbignon/ER-Route-tracker/internal/influx"
	"github.com/rbignon/ER-Route-tracker/internal/model"
	"github.com/rbignon/ER-Route-tracker/internal/session"
	"github.com/rbignon/ER-Route-tracker/internal/snapshot"
	"github.com/rbignon/ER-Route-tracker/internal/worker"
)

// TickTimer records the duration of the most recent sampling pass. The
// run loop observes, the monitor reads.
type TickTimer struct {
	ns atomic.Int64
}

// Observe stores the duration of one pass.
func (t *TickTimer) Observe(d time.Duration) {
	t.ns.Store(d.Nanoseconds())
}

// LastTickDuration returns the most recently observed pass duration.
func (t *TickTimer) LastTickDuration() time.Duration {
	return time.Duration(t.ns.Load())
}

// Dependencies holds all dependencies for the monitor service.
// Session, Snap and Worker are required; the rest may be zero.
type Dependencies struct {
	Session    *session.Context
	Snap       *snapshot.Cache
	Worker     *worker.Manager
	Ticks      *TickTimer
	Log        *slog.Logger
	StatusPath string
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	interval  time.Duration
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service and registers its OTel
// gauges. interval <= 0 selects five seconds.
func NewService(deps Dependencies, interval time.Duration) (*Service, error) {
	if deps.Session == nil || deps.Snap == nil || deps.Worker == nil {
		return nil, errors.New("monitor needs the session context, the snapshot cache and the worker")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}

	s := &Service{
		deps:     deps,
		interval: interval,
		stopChan: make(chan struct{}),
	}

	if err := s.registerGauges(); err != nil {
		return nil, err
	}

	return s, nil
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Health builds one health pass: optional JSON status sections plus the
// performance report for the sinks.
func (s *Service) Health(rawSnapshot, writeQueues, lastWrite bool) (output []string, report worker.PerfReport) {
	sess := s.deps.Session.Get()
	snap := s.deps.Snap.Get()
	stats := s.deps.Worker.Stats()

	var tickMs float32
	if s.deps.Ticks != nil {
		tickMs = float32(s.deps.Ticks.LastTickDuration().Microseconds()) / 1000.0
	}

	report = worker.PerfReport{
		Row: model.TrackerPerformance{
			Time:      time.Now(),
			SessionID: sess.ID,
			Buffers: model.BufferLengths{
				Points: uint16(stats.QueuedPoints),
				Events: uint16(stats.QueuedEvents),
				Stream: uint16(stats.StreamDepth),
			},
			LastTickDurationMs:  tickMs,
			LastWriteDurationMs: stats.LastWriteMs,
		},
		Fields: influx.Performance{
			QueuedPoints: stats.QueuedPoints,
			QueuedEvents: stats.QueuedEvents,
			StreamDepth:  stats.StreamDepth,
			LastTickMs:   tickMs,
			LastWriteMs:  stats.LastWriteMs,
			Deaths:       snap.Deaths,
			IGTMs:        snap.IGT,
		},
	}

	if rawSnapshot {
		snapStr, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			snapStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(snapStr))
	}
	if writeQueues {
		queuesStr, err := json.MarshalIndent(report.Row.Buffers, "", "  ")
		if err != nil {
			queuesStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(queuesStr))
	}
	if lastWrite {
		lastWriteStr, err := json.MarshalIndent(stats.LastWriteMs, "", "  ")
		if err != nil {
			lastWriteStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(lastWriteStr))
	}

	return output, report
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Log.Debug("starting status monitor goroutine")

		var statusFile *os.File
		if s.deps.StatusPath != "" {
			var err error
			statusFile, err = os.Create(s.deps.StatusPath)
			if err != nil {
				s.deps.Log.Error("creating status file failed", "path", s.deps.StatusPath, "error", err)
			} else {
				defer statusFile.Close()
			}
		}

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(s.interval)

				// nothing to report until a game is attached
				if s.deps.Session.Get().ID == "" {
					continue
				}

				lines, report := s.Health(true, true, true)

				if statusFile != nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					for _, line := range lines {
						statusFile.WriteString(line + "\n")
					}
				}

				snap := s.deps.Snap.Get()
				s.deps.Log.Info("sampler health",
					"recording", snap.Recording,
					"points", snap.PointCount,
					"samples", snap.SamplesTaken,
					"skipped", snap.SkippedTicks,
					"deaths", snap.Deaths,
					"queued_points", report.Fields.QueuedPoints,
					"queued_events", report.Fields.QueuedEvents,
					"stream_depth", report.Fields.StreamDepth,
					"last_tick_ms", report.Fields.LastTickMs,
					"last_write_ms", report.Fields.LastWriteMs,
				)

				s.deps.Worker.EnqueuePerf(report)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

func (s *Service) registerGauges() error {
	mt := meter()

	trajectoryPoints, err := mt.Int64ObservableGauge(
		"tracker.trajectory.points",
		metric.WithDescription("Points in the active trajectory"),
	)
	if err != nil {
		return fmt.Errorf("creating trajectory gauge: %w", err)
	}

	queuedPoints, err := mt.Int64ObservableGauge(
		"tracker.queue.points",
		metric.WithDescription("Samples waiting for the sink worker"),
	)
	if err != nil {
		return fmt.Errorf("creating queued points gauge: %w", err)
	}

	queuedEvents, err := mt.Int64ObservableGauge(
		"tracker.queue.events",
		metric.WithDescription("Event rows waiting for the sink worker"),
	)
	if err != nil {
		return fmt.Errorf("creating queued events gauge: %w", err)
	}

	streamDepth, err := mt.Int64ObservableGauge(
		"tracker.stream.depth",
		metric.WithDescription("Messages in the live stream send queue"),
	)
	if err != nil {
		return fmt.Errorf("creating stream depth gauge: %w", err)
	}

	writeMs, err := mt.Float64ObservableGauge(
		"tracker.write.duration",
		metric.WithDescription("Last sink write pass in milliseconds"),
	)
	if err != nil {
		return fmt.Errorf("creating write duration gauge: %w", err)
	}

	tickMs, err := mt.Float64ObservableGauge(
		"tracker.tick.duration",
		metric.WithDescription("Last sampling pass in milliseconds"),
	)
	if err != nil {
		return fmt.Errorf("creating tick duration gauge: %w", err)
	}

	_, err = mt.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			snap := s.deps.Snap.Get()
			stats := s.deps.Worker.Stats()

			o.ObserveInt64(trajectoryPoints, int64(snap.PointCount))
			o.ObserveInt64(queuedPoints, int64(stats.QueuedPoints))
			o.ObserveInt64(queuedEvents, int64(stats.QueuedEvents))
			o.ObserveInt64(streamDepth, int64(stats.StreamDepth))
			o.ObserveFloat64(writeMs, float64(stats.LastWriteMs))
			if s.deps.Ticks != nil {
				o.ObserveFloat64(tickMs, float64(s.deps.Ticks.LastTickDuration().Microseconds())/1000.0)
			}
			return nil
		},
		trajectoryPoints, queuedPoints, queuedEvents, streamDepth, writeMs, tickMs,
	)
	if err != nil {
		return fmt.Errorf("registering gauge callback: %w", err)
	}

	return nil
}
