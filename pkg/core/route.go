// pkg/core/route.go
package core

import "errors"

// ErrEmptyRoute is returned when a save is requested for a trajectory
// with zero recorded points. Checked with errors.Is.
var ErrEmptyRoute = errors.New("route is empty, nothing to save")

// RoutePoint is one immutable trajectory sample. Local coordinates are in
// the tile frame the game reported; global coordinates are in the single
// world frame (or a copy of the local ones when conversion was degraded).
type RoutePoint struct {
	X           float32 `json:"x"`
	Y           float32 `json:"y"`
	Z           float32 `json:"z"`
	GlobalX     float32 `json:"global_x"`
	GlobalY     float32 `json:"global_y"`
	GlobalZ     float32 `json:"global_z"`
	MapID       uint32  `json:"map_id"`
	MapIDStr    string  `json:"map_id_str"`
	TimestampMs uint64  `json:"timestamp_ms"`
	OnTorrent   bool    `json:"on_torrent"`
}

// SavedRoute is the persisted trajectory document. It is derived entirely
// from the in-memory trajectory at save time and never mutated afterwards.
type SavedRoute struct {
	Name         string       `json:"name"`
	RecordedAt   string       `json:"recorded_at"`
	DurationSecs float64      `json:"duration_secs"`
	IntervalMs   uint64       `json:"interval_ms"`
	PointCount   int          `json:"point_count"`
	Points       []RoutePoint `json:"points"`
}
