// pkg/core/debug.go
package core

// TorrentDebugInfo is a diagnostic snapshot of the mount-related telemetry
// values. Every field resolves through its own pointer chain and is nil when
// that chain was unavailable; the snapshot is for inspection only and never
// drives sampling decisions.
type TorrentDebugInfo struct {
	RideParamID      *uint32 `json:"ride_param_id"`
	RidingEnabled    *bool   `json:"riding_enabled"`
	IsRiding         *bool   `json:"is_riding"`
	IsMount          *bool   `json:"is_mount"`
	MountState       *uint32 `json:"mount_state"`
	MountHP          *uint32 `json:"mount_hp"`
	InsideNoRideArea *bool   `json:"inside_no_ride_area"`
}
