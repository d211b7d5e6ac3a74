package streaming

import (
	"encoding/json"

	"github.com/rbignon/ER-Route-tracker/pkg/core"
)

// Message type constants matching the live-viewer protocol.
const (
	TypeRouteStart = "route_start"
	TypeRoutePoint = "route_point"
	TypeRouteSaved = "route_saved"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// RouteStartPayload announces a new recording to the live viewer.
type RouteStartPayload struct {
	SessionID   string `json:"session_id"`
	GameVersion string `json:"game_version"`
	IntervalMs  uint64 `json:"interval_ms"`
	StartedAt   string `json:"started_at"`
}

// RoutePointPayload carries one live sample.
type RoutePointPayload struct {
	SessionID string          `json:"session_id"`
	Point     core.RoutePoint `json:"point"`
}

// RouteSavedPayload reports a completed save.
type RouteSavedPayload struct {
	SessionID    string  `json:"session_id"`
	Name         string  `json:"name"`
	PointCount   int     `json:"point_count"`
	DurationSecs float64 `json:"duration_secs"`
}
