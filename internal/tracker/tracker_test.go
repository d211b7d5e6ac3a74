package tracker

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rbignon/ER-Route-tracker/internal/memedit"
	"github.com/rbignon/ER-Route-tracker/internal/pointers"
	"github.com/rbignon/ER-Route-tracker/internal/snapshot"
	"github.com/rbignon/ER-Route-tracker/internal/transform"
)

// Cell addresses for the fake layout. Each telemetry value sits behind a
// single-element chain so the tests drive engine behavior, not chain
// walking.
const (
	posAddr    = 0x1000
	mapAddr    = 0x2000
	rideAddr   = 0x3000
	igtAddr    = 0x4000
	deathAddr  = 0x5000
	rideParam  = 0x6000
	mountHP    = 0x6100
	mountState = 0x6200
)

// fakeReader serves exact-size reads from a sparse cell map.
type fakeReader struct {
	cells map[uint64][]byte
}

func newFakeReader() *fakeReader {
	return &fakeReader{cells: make(map[uint64][]byte)}
}

func (f *fakeReader) ReadMemory(addr uint64, buf []byte) (int, error) {
	cell, ok := f.cells[addr]
	if !ok || len(cell) < len(buf) {
		return 0, fmt.Errorf("unmapped read at %#x", addr)
	}
	copy(buf, cell[:len(buf)])
	return len(buf), nil
}

func (f *fakeReader) putVec3(addr uint64, x, y, z float32) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(y))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(z))
	f.cells[addr] = buf
}

func (f *fakeReader) putU32(addr uint64, v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	f.cells[addr] = buf
}

func (f *fakeReader) putU8(addr uint64, v uint8) {
	f.cells[addr] = []byte{v}
}

func (f *fakeReader) del(addr uint64) {
	delete(f.cells, addr)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testChains(r memedit.Reader) *pointers.Set {
	return &pointers.Set{
		Position:   memedit.NewChain(r, posAddr),
		MapID:      memedit.NewChain(r, mapAddr),
		IsRiding:   memedit.NewChain(r, rideAddr),
		IGT:        memedit.NewChain(r, igtAddr),
		DeathCount: memedit.NewChain(r, deathAddr),
		Torrent: pointers.TorrentChains{
			RideParamID:      memedit.NewChain(r, rideParam),
			RidingEnabled:    memedit.NewChain(r, rideAddr),
			IsRiding:         memedit.NewChain(r, rideAddr),
			IsMount:          memedit.NewChain(r, rideAddr),
			MountState:       memedit.NewChain(r, mountState),
			MountHP:          memedit.NewChain(r, mountHP),
			InsideNoRideArea: memedit.NewChain(r, rideAddr),
		},
	}
}

// overworldTile is m60_42_38_00, whose frame is already global.
const overworldTile = uint32(60)<<24 | uint32(42)<<16 | uint32(38)<<8

// dungeonTile is m10_00_00_00, mapped through the test anchor table.
const dungeonTile = uint32(10) << 24

func anchoredTransformer(t *testing.T) *transform.Transformer {
	t.Helper()
	table := "map_id,anchor_map_id,dx,dy,dz\n" +
		"m10_00_00_00,m60_42_38_00,100.0,0.0,-50.0\n"
	tr, err := transform.Parse(strings.NewReader(table))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tr
}

func testEngine(t *testing.T, r *fakeReader, tr *transform.Transformer) (*Engine, *fakeClock, *snapshot.Cache) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	snap := snapshot.New()
	log := slog.New(slog.DiscardHandler)
	e := New(testChains(r), tr, snap, log, Config{IntervalMs: 500})
	e.now = clock.now
	return e, clock, snap
}

func readyReader() *fakeReader {
	r := newFakeReader()
	r.putVec3(posAddr, 10.5, 42.0, -3.25)
	r.putU32(mapAddr, overworldTile)
	r.putU8(rideAddr, 0)
	r.putU32(igtAddr, 123456)
	r.putU32(deathAddr, 3)
	return r
}

func TestTickIdleIsNoOp(t *testing.T) {
	e, _, _ := testEngine(t, readyReader(), transform.NewEmpty())

	if _, ok := e.Tick(); ok {
		t.Error("expected no sample while idle")
	}
	if e.PointCount() != 0 {
		t.Errorf("expected 0 points, got %d", e.PointCount())
	}
}

func TestTickGatesOnInterval(t *testing.T) {
	e, clock, _ := testEngine(t, readyReader(), transform.NewEmpty())

	e.Start()
	if _, ok := e.Tick(); !ok {
		t.Fatal("expected first sample immediately")
	}

	clock.advance(100 * time.Millisecond)
	if _, ok := e.Tick(); ok {
		t.Error("expected sample rejected before interval elapsed")
	}

	clock.advance(400 * time.Millisecond)
	if _, ok := e.Tick(); !ok {
		t.Fatal("expected sample once interval elapsed")
	}

	points := e.Points()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].TimestampMs != 0 {
		t.Errorf("expected first timestamp 0, got %d", points[0].TimestampMs)
	}
	if points[1].TimestampMs != 500 {
		t.Errorf("expected second timestamp 500, got %d", points[1].TimestampMs)
	}
}

func TestTimestampsNonDecreasing(t *testing.T) {
	e, clock, _ := testEngine(t, readyReader(), transform.NewEmpty())

	e.Start()
	for i := 0; i < 20; i++ {
		e.Tick()
		clock.advance(137 * time.Millisecond)
	}

	points := e.Points()
	for i := 1; i < len(points); i++ {
		if points[i].TimestampMs < points[i-1].TimestampMs {
			t.Fatalf("timestamp decreased at %d: %d -> %d", i, points[i-1].TimestampMs, points[i].TimestampMs)
		}
		if points[i].TimestampMs-points[i-1].TimestampMs < 500 {
			t.Fatalf("points %d and %d closer than the interval", i-1, i)
		}
	}
}

func TestStartClearsTrajectory(t *testing.T) {
	e, clock, _ := testEngine(t, readyReader(), transform.NewEmpty())

	e.Start()
	e.Tick()
	clock.advance(time.Second)
	e.Tick()
	if e.PointCount() != 2 {
		t.Fatalf("expected 2 points, got %d", e.PointCount())
	}

	e.Start()
	if e.PointCount() != 0 {
		t.Errorf("expected restart to clear trajectory, got %d points", e.PointCount())
	}
	if !e.Recording() {
		t.Error("expected engine still recording after restart")
	}

	// session start moved, so the next sample is at elapsed 0 again
	e.Tick()
	if got := e.Points()[0].TimestampMs; got != 0 {
		t.Errorf("expected elapsed 0 after restart, got %d", got)
	}
}

func TestStopRetainsTrajectory(t *testing.T) {
	e, clock, _ := testEngine(t, readyReader(), transform.NewEmpty())

	e.Start()
	e.Tick()
	e.Stop()

	if e.Recording() {
		t.Error("expected idle after stop")
	}
	if e.PointCount() != 1 {
		t.Fatalf("expected trajectory retained, got %d points", e.PointCount())
	}

	clock.advance(time.Second)
	if _, ok := e.Tick(); ok {
		t.Error("expected no sample after stop")
	}
	if e.PointCount() != 1 {
		t.Errorf("expected 1 point after stopped ticks, got %d", e.PointCount())
	}
}

func TestClear(t *testing.T) {
	e, _, _ := testEngine(t, readyReader(), transform.NewEmpty())

	e.Start()
	e.Tick()
	if err := e.Clear(); err != ErrRecording {
		t.Fatalf("expected ErrRecording while recording, got %v", err)
	}

	e.Stop()
	if err := e.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.PointCount() != 0 {
		t.Errorf("expected empty trajectory after clear, got %d", e.PointCount())
	}
}

func TestTickSkipsOnMissingPosition(t *testing.T) {
	r := readyReader()
	e, _, snap := testEngine(t, r, transform.NewEmpty())

	e.Start()
	r.del(posAddr)
	if _, ok := e.Tick(); ok {
		t.Fatal("expected skip with position unavailable")
	}
	if e.PointCount() != 0 {
		t.Errorf("expected no partial point, got %d", e.PointCount())
	}
	if got := snap.Get().SkippedTicks; got != 1 {
		t.Errorf("expected 1 skipped tick, got %d", got)
	}

	// the skipped tick stays due: the next call samples without waiting
	r.putVec3(posAddr, 1, 2, 3)
	if _, ok := e.Tick(); !ok {
		t.Fatal("expected sampling to resume immediately")
	}
}

func TestTickSkipsOnMissingMapID(t *testing.T) {
	r := readyReader()
	e, _, _ := testEngine(t, r, transform.NewEmpty())

	e.Start()
	r.del(mapAddr)
	if _, ok := e.Tick(); ok {
		t.Fatal("expected skip with map id unavailable")
	}
	if e.PointCount() != 0 {
		t.Errorf("expected no partial point, got %d", e.PointCount())
	}
}

func TestTickFallsBackToLocalOnEmptyTable(t *testing.T) {
	e, _, _ := testEngine(t, readyReader(), transform.NewEmpty())

	e.Start()
	p, ok := e.Tick()
	if !ok {
		t.Fatal("expected sample")
	}
	if p.GlobalX != p.X || p.GlobalY != p.Y || p.GlobalZ != p.Z {
		t.Errorf("expected global == local on fallback, got %+v", p)
	}
}

func TestTickConvertsThroughAnchorTable(t *testing.T) {
	r := readyReader()
	r.putU32(mapAddr, dungeonTile)
	e, _, _ := testEngine(t, r, anchoredTransformer(t))

	e.Start()
	p, ok := e.Tick()
	if !ok {
		t.Fatal("expected sample")
	}
	if p.GlobalX != p.X+100 {
		t.Errorf("expected global x %f, got %f", p.X+100, p.GlobalX)
	}
	if p.GlobalZ != p.Z-50 {
		t.Errorf("expected global z %f, got %f", p.Z-50, p.GlobalZ)
	}
	if p.GlobalY != p.Y {
		t.Errorf("expected altitude passthrough, got %f", p.GlobalY)
	}
	if p.MapIDStr != "m10_00_00_00" {
		t.Errorf("expected map id string m10_00_00_00, got %q", p.MapIDStr)
	}
}

func TestTickRidingFlag(t *testing.T) {
	r := readyReader()
	e, clock, _ := testEngine(t, r, transform.NewEmpty())

	e.Start()
	r.del(rideAddr)
	p, ok := e.Tick()
	if !ok {
		t.Fatal("expected sample despite missing ride flag")
	}
	if p.OnTorrent {
		t.Error("expected riding default false")
	}

	clock.advance(time.Second)
	r.putU8(rideAddr, 1)
	p, ok = e.Tick()
	if !ok {
		t.Fatal("expected sample")
	}
	if !p.OnTorrent {
		t.Error("expected riding true")
	}
}

func TestStatusExpires(t *testing.T) {
	e, clock, _ := testEngine(t, readyReader(), transform.NewEmpty())

	if _, ok := e.Status(); ok {
		t.Error("expected no status initially")
	}

	e.SetStatus("Recording started")
	text, ok := e.Status()
	if !ok || text != "Recording started" {
		t.Fatalf("expected fresh status, got %q, %v", text, ok)
	}

	clock.advance(2900 * time.Millisecond)
	if _, ok := e.Status(); !ok {
		t.Error("expected status still visible under 3s")
	}

	clock.advance(100 * time.Millisecond)
	if _, ok := e.Status(); ok {
		t.Error("expected status expired at 3s")
	}
}

func TestWaitReadyImmediate(t *testing.T) {
	e, _, _ := testEngine(t, readyReader(), transform.NewEmpty())

	if err := e.WaitReady(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IGT() != 123456 {
		t.Errorf("expected igt 123456, got %d", e.IGT())
	}
}

func TestWaitReadyCancelled(t *testing.T) {
	r := readyReader()
	r.putU32(igtAddr, 0)
	e, _, _ := testEngine(t, r, transform.NewEmpty())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.WaitReady(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestTorrentDebugNullableFields(t *testing.T) {
	r := readyReader()
	r.putU32(rideParam, 8850)
	r.putU8(rideAddr, 1)
	r.del(mountHP)
	r.del(mountState)
	e, _, _ := testEngine(t, r, transform.NewEmpty())

	info := e.TorrentDebug()
	if info.RideParamID == nil || *info.RideParamID != 8850 {
		t.Errorf("expected ride param 8850, got %v", info.RideParamID)
	}
	if info.IsRiding == nil || !*info.IsRiding {
		t.Errorf("expected riding true, got %v", info.IsRiding)
	}
	if info.MountHP != nil {
		t.Error("expected mount hp nil when unavailable")
	}
	if info.MountState != nil {
		t.Error("expected mount state nil when unavailable")
	}
}

func TestCurrentPosition(t *testing.T) {
	r := readyReader()
	r.putU32(mapAddr, dungeonTile)
	e, _, _ := testEngine(t, r, anchoredTransformer(t))

	pos, ok := e.CurrentPosition()
	if !ok {
		t.Fatal("expected live fix")
	}
	if !pos.Converted {
		t.Error("expected anchored conversion")
	}
	if pos.Global[0] != pos.Local[0]+100 {
		t.Errorf("expected converted global x, got %f", pos.Global[0])
	}
	if e.PointCount() != 0 {
		t.Error("expected live query to leave the trajectory alone")
	}

	r.del(posAddr)
	if _, ok := e.CurrentPosition(); ok {
		t.Error("expected no fix with position unavailable")
	}
}

func TestSnapshotPublished(t *testing.T) {
	e, _, snap := testEngine(t, readyReader(), transform.NewEmpty())

	e.Start()
	e.Tick()

	s := snap.Get()
	if !s.Recording {
		t.Error("expected snapshot recording")
	}
	if s.PointCount != 1 {
		t.Errorf("expected 1 point in snapshot, got %d", s.PointCount)
	}
	if !s.PosValid {
		t.Error("expected position valid in snapshot")
	}
	if s.Deaths != 3 {
		t.Errorf("expected 3 deaths, got %d", s.Deaths)
	}
	if s.IGT != 123456 {
		t.Errorf("expected igt 123456, got %d", s.IGT)
	}

	e.NoteSaved("route_2026-08-23_14-05-01")
	if got := snap.Get().RouteName; got != "route_2026-08-23_14-05-01" {
		t.Errorf("expected saved name in snapshot, got %q", got)
	}
}
