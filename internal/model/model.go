package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the route library schema
var DatabaseModels = []interface{}{
	&TrackerInfo{},
	&Route{},
	&RoutePoint{},
	&TrackerEvent{},
	&TrackerPerformance{},
}

var DatabaseModelsSQLite = []interface{}{
	&TrackerInfo{},
	&Route{},
	&RoutePoint{},
	&TrackerEvent{},
	&TrackerPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// TrackerInfo contains profile information about this install
type TrackerInfo struct {
	gorm.Model
	RunnerName  string `json:"runnerName" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
	Website     string `json:"websiteURL" gorm:"size:255"`
}

func (*TrackerInfo) TableName() string {
	return "tracker_infos"
}

// TrackerPerformance is the model for sampler performance metrics
type TrackerPerformance struct {
	Time                time.Time     `json:"time" gorm:"type:timestamptz;index:idx_time"`
	SessionID           string        `json:"sessionId" gorm:"size:36;index:idx_trackerperformance_session_id"`
	Buffers             BufferLengths `json:"bufferLengths" gorm:"embedded;embeddedPrefix:buffer_"`
	LastTickDurationMs  float32       `json:"lastTickDurationMs"`
	LastWriteDurationMs float32       `json:"lastWriteDurationMs"`
}

func (*TrackerPerformance) TableName() string {
	return "tracker_performances"
}

// BufferLengths is the model for in-memory queue depths at sample time
type BufferLengths struct {
	Points uint16 `json:"points"`
	Events uint16 `json:"events"`
	Stream uint16 `json:"stream"`
}

////////////////////////
// LIBRARY MODELS
////////////////////////

// Route is the library entry for one recorded run. The point rows and the
// track geometry are derived from the same trajectory document on disk.
type Route struct {
	gorm.Model
	Name         string    `json:"name" gorm:"size:200;index:idx_route_name"`
	RecordedAt   time.Time `json:"recordedAt" gorm:"type:timestamptz;index:idx_route_recorded_at"` // wall-clock start of the recording
	DurationSecs float64   `json:"durationSecs"`                                                   // elapsed ms of the last point / 1000
	IntervalMs   uint64    `json:"intervalMs"`                                                     // sampling interval the run was recorded with
	PointCount   int       `json:"pointCount"`
	GameVersion  string    `json:"gameVersion" gorm:"size:32"`
	SessionID    string    `json:"sessionId" gorm:"size:36;index:idx_route_session_id"`
	FilePath     string    `json:"filePath" gorm:"size:512;index:idx_route_file_path"` // trajectory document this row was indexed from

	Track  geom.Geometry `json:"-"` // LineStringZM of global positions over time [x,z,y,timestampMs]
	Points []RoutePoint  `json:"points" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Route) TableName() string {
	return "routes"
}

func (r *Route) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existingRoute Route
	err = db.Where("file_path = ?", r.FilePath).First(&existingRoute).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(r).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*r = existingRoute
	return false, nil
}

// RoutePoint is one sampled position within a route
type RoutePoint struct {
	ID      uint  `json:"id" gorm:"primarykey;autoIncrement;"`
	RouteID uint  `json:"routeId" gorm:"index:idx_routepoint_route_id"`
	Route   Route `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RouteID;"`
	Seq     uint  `json:"seq" gorm:"index:idx_routepoint_seq"` // sample order within the route

	Position    geom.Point `json:"position"`  // global ground-plane position, elevation as Z
	Elevation   float32    `json:"elevation"` // global Y coordinate / height
	LocalX      float32    `json:"x"`         // tile-frame position as the game reported it
	LocalY      float32    `json:"y"`
	LocalZ      float32    `json:"z"`
	MapID       uint32     `json:"mapId"`                          // packed tile identifier
	MapName     string     `json:"mapIdStr" gorm:"size:16"`        // mAA_GG_ZZ_II form of MapID
	TimestampMs uint64     `json:"timestampMs"`                    // elapsed ms since recording start
	OnTorrent   bool       `json:"onTorrent" gorm:"default:false"` // sampled while mounted
}

func (*RoutePoint) TableName() string {
	return "route_points"
}

// TrackerEvent is a generic event for process attach, recording lifecycle and deaths
//
// Common names: "attached", "route:start", "route:saved", "death"
type TrackerEvent struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time      `json:"time" gorm:"type:timestamptz;"` // wall-clock time the event occurred
	SessionID string         `json:"sessionId" gorm:"size:36;index:idx_trackerevent_session_id"`
	Name      string         `json:"name" gorm:"size:64"`                      // event type
	Message   string         `json:"message"`                                  // human-readable detail (route name, map id)
	ExtraData datatypes.JSON `json:"extraData" gorm:"type:jsonb;default:'{}'"` // additional JSON data
}

func (*TrackerEvent) TableName() string {
	return "tracker_events"
}
