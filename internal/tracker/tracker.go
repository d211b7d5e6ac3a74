// Package tracker is the sampling core. It owns the recording state
// machine, walks the pointer chains each tick, converts positions into the
// global frame and accumulates the in-memory trajectory. Exactly one
// goroutine, the run loop, calls into an Engine; there is no locking here.
// Readers on other goroutines get their view through the snapshot cache.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rbignon/ER-Route-tracker/internal/pointers"
	"github.com/rbignon/ER-Route-tracker/internal/snapshot"
	"github.com/rbignon/ER-Route-tracker/internal/transform"
	"github.com/rbignon/ER-Route-tracker/pkg/core"
)

// State is the recording state. Restarting goes through Start again rather
// than a third state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// statusTTL is how long a status message stays visible. Readers poll, so
// expiry is checked on read; no timer runs.
const statusTTL = 3 * time.Second

// readyPollInterval paces the startup readiness barrier.
const readyPollInterval = 100 * time.Millisecond

// ErrRecording is returned by operations that need an idle engine.
var ErrRecording = errors.New("recording in progress")

// Config carries the sampling options.
type Config struct {
	// IntervalMs is the minimum spacing between accepted samples.
	IntervalMs uint64
}

// Position is a live player fix for the interactive position query.
// Converted reports whether the global coordinates went through the anchor
// table or fell back to the local values.
type Position struct {
	Local     [3]float32
	Global    [3]float32
	Converted bool
	MapID     core.MapID
	OnTorrent bool
}

// Engine samples the attached client into a trajectory.
type Engine struct {
	chains *pointers.Set
	trans  *transform.Transformer
	snap   *snapshot.Cache
	log    *slog.Logger
	cfg    Config

	now func() time.Time

	state        State
	points       []core.RoutePoint
	sessionStart time.Time
	lastSample   time.Time

	statusText string
	statusAt   time.Time

	samplesTaken  int
	skippedTicks  int
	lastSavedName string

	// last observed telemetry, republished with every snapshot
	posValid   bool
	lastLocal  [3]float32
	lastGlobal [3]float32
	lastMapID  core.MapID
	lastRiding bool
	deaths     uint32
	igt        uint32
}

func New(chains *pointers.Set, trans *transform.Transformer, snap *snapshot.Cache, log *slog.Logger, cfg Config) *Engine {
	return &Engine{
		chains: chains,
		trans:  trans,
		snap:   snap,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WaitReady blocks until the in-game timer reports a loaded world. The
// timer stays at zero on the main menu and during loads, and sampling an
// unloaded world reads garbage, so there is deliberately no timeout; only
// ctx cancellation ends the wait early.
func (e *Engine) WaitReady(ctx context.Context) error {
	for {
		if igt, ok := e.chains.IGT.U32(); ok && igt > 0 {
			e.igt = igt
			e.log.Info("world loaded", "igt_ms", igt)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}

// Start begins a new recording. Any prior trajectory is discarded; Start
// while recording is a restart.
func (e *Engine) Start() {
	restart := e.state == Recording
	e.state = Recording
	e.points = nil
	e.sessionStart = e.now()
	e.lastSample = time.Time{}
	e.samplesTaken = 0
	e.skippedTicks = 0
	e.log.Info("recording started", "restart", restart, "interval_ms", e.cfg.IntervalMs)
	e.publish()
}

// Stop ends the recording. The trajectory is kept for saving.
func (e *Engine) Stop() {
	if e.state != Recording {
		return
	}
	e.state = Idle
	e.log.Info("recording stopped", "points", len(e.points))
	e.publish()
}

// Clear discards the trajectory between recordings.
func (e *Engine) Clear() error {
	if e.state == Recording {
		return ErrRecording
	}
	e.points = nil
	e.publish()
	return nil
}

// Tick takes one gated sample. It returns the appended point and true only
// when a sample was accepted on this call. A due tick with the position or
// tile id unavailable appends nothing and stays due, so sampling resumes
// the moment the values come back.
func (e *Engine) Tick() (core.RoutePoint, bool) {
	if e.state != Recording {
		return core.RoutePoint{}, false
	}
	now := e.now()
	interval := time.Duration(e.cfg.IntervalMs) * time.Millisecond
	if !e.lastSample.IsZero() && now.Sub(e.lastSample) < interval {
		return core.RoutePoint{}, false
	}

	e.observeAux()

	local, ok := e.chains.Position.F32Vec3()
	if !ok {
		e.skip("position")
		return core.RoutePoint{}, false
	}
	raw, ok := e.chains.MapID.U32()
	if !ok {
		e.skip("map_id")
		return core.RoutePoint{}, false
	}
	mapID := core.MapID(raw)

	gx, gy, gz, converted := e.trans.LocalToWorldFirst(mapID, local[0], local[1], local[2])
	if !converted {
		gx, gy, gz = local[0], local[1], local[2]
	}

	riding, ok := e.chains.IsRiding.Bool()
	if !ok {
		riding = false
	}

	p := core.RoutePoint{
		X:           local[0],
		Y:           local[1],
		Z:           local[2],
		GlobalX:     gx,
		GlobalY:     gy,
		GlobalZ:     gz,
		MapID:       raw,
		MapIDStr:    mapID.String(),
		TimestampMs: uint64(now.Sub(e.sessionStart) / time.Millisecond),
		OnTorrent:   riding,
	}
	e.points = append(e.points, p)
	e.lastSample = now
	e.samplesTaken++

	e.posValid = true
	e.lastLocal = local
	e.lastGlobal = [3]float32{gx, gy, gz}
	e.lastMapID = mapID
	e.lastRiding = riding
	e.publish()
	return p, true
}

func (e *Engine) skip(field string) {
	e.skippedTicks++
	e.log.Debug("sample skipped", "missing", field)
	e.publish()
}

// observeAux refreshes the death and in-game-timer readings. Both are
// advisory; a failed read keeps the previous value.
func (e *Engine) observeAux() {
	if d, ok := e.chains.DeathCount.U32(); ok {
		e.deaths = d
	}
	if t, ok := e.chains.IGT.U32(); ok {
		e.igt = t
	}
}

// CurrentPosition reads a live player fix outside the sampling path. It
// never touches the trajectory.
func (e *Engine) CurrentPosition() (Position, bool) {
	local, ok := e.chains.Position.F32Vec3()
	if !ok {
		return Position{}, false
	}
	raw, ok := e.chains.MapID.U32()
	if !ok {
		return Position{}, false
	}
	mapID := core.MapID(raw)

	gx, gy, gz, converted := e.trans.LocalToWorldFirst(mapID, local[0], local[1], local[2])
	if !converted {
		gx, gy, gz = local[0], local[1], local[2]
	}
	riding, ok := e.chains.IsRiding.Bool()
	if !ok {
		riding = false
	}

	pos := Position{
		Local:     local,
		Global:    [3]float32{gx, gy, gz},
		Converted: converted,
		MapID:     mapID,
		OnTorrent: riding,
	}
	e.posValid = true
	e.lastLocal = local
	e.lastGlobal = pos.Global
	e.lastMapID = mapID
	e.lastRiding = riding
	e.observeAux()
	e.publish()
	return pos, true
}

// TorrentDebug resolves every mount diagnostic chain independently. A
// broken chain leaves its field nil; the snapshot never fails as a whole.
func (e *Engine) TorrentDebug() core.TorrentDebugInfo {
	var info core.TorrentDebugInfo
	if v, ok := e.chains.Torrent.RideParamID.U32(); ok {
		info.RideParamID = &v
	}
	if v, ok := e.chains.Torrent.RidingEnabled.Bool(); ok {
		info.RidingEnabled = &v
	}
	if v, ok := e.chains.Torrent.IsRiding.Bool(); ok {
		info.IsRiding = &v
	}
	if v, ok := e.chains.Torrent.IsMount.Bool(); ok {
		info.IsMount = &v
	}
	if v, ok := e.chains.Torrent.MountState.U32(); ok {
		info.MountState = &v
	}
	if v, ok := e.chains.Torrent.MountHP.U32(); ok {
		info.MountHP = &v
	}
	if v, ok := e.chains.Torrent.InsideNoRideArea.Bool(); ok {
		info.InsideNoRideArea = &v
	}
	return info
}

// SetStatus stores a transient console message.
func (e *Engine) SetStatus(text string) {
	e.statusText = text
	e.statusAt = e.now()
}

// Status returns the stored message while it is under the expiry window.
func (e *Engine) Status() (string, bool) {
	if e.statusText == "" || e.now().Sub(e.statusAt) >= statusTTL {
		return "", false
	}
	return e.statusText, true
}

// NoteSaved records the name of the last written document for the snapshot.
func (e *Engine) NoteSaved(name string) {
	e.lastSavedName = name
	e.publish()
}

func (e *Engine) State() State { return e.state }

func (e *Engine) Recording() bool { return e.state == Recording }

// Points returns the accumulated trajectory. Appended elements are never
// mutated and Start allocates a fresh buffer, so holding the returned slice
// across engine calls is safe.
func (e *Engine) Points() []core.RoutePoint { return e.points }

func (e *Engine) PointCount() int { return len(e.points) }

func (e *Engine) IntervalMs() uint64 { return e.cfg.IntervalMs }

func (e *Engine) SessionStart() time.Time { return e.sessionStart }

func (e *Engine) Deaths() uint32 { return e.deaths }

func (e *Engine) IGT() uint32 { return e.igt }

func (e *Engine) publish() {
	if e.snap == nil {
		return
	}
	var last uint64
	if n := len(e.points); n > 0 {
		last = e.points[n-1].TimestampMs
	}
	e.snap.Publish(snapshot.Snapshot{
		Recording:     e.state == Recording,
		RouteName:     e.lastSavedName,
		PointCount:    len(e.points),
		PosValid:      e.posValid,
		Local:         e.lastLocal,
		Global:        e.lastGlobal,
		MapID:         e.lastMapID,
		OnTorrent:     e.lastRiding,
		SamplesTaken:  e.samplesTaken,
		SkippedTicks:  e.skippedTicks,
		LastElapsedMs: last,
		Deaths:        e.deaths,
		IGT:           e.igt,
		UpdatedAt:     e.now(),
	})
}
