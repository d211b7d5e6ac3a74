// Package convert provides functions to convert between trajectory documents
// and GORM library models
package convert

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/rbignon/ER-Route-tracker/internal/model"
	"github.com/rbignon/ER-Route-tracker/pkg/core"
)

// recordedAtLayout matches the timestamp format written into trajectory documents.
const recordedAtLayout = "2006-01-02 15:04:05"

// globalToPoint converts a sample's global position to a geom.Point.
// The ground plane is x/z; elevation y maps to the geometry Z.
func globalToPoint(p core.RoutePoint) geom.Point {
	coords := geom.Coordinates{XY: geom.XY{X: float64(p.GlobalX), Y: float64(p.GlobalZ)}, Z: float64(p.GlobalY)}
	return geom.NewPoint(coords)
}

// trackLineString builds a LineStringZM [x, z, y, timestampMs] from the samples.
// Routes with fewer than two points carry no track geometry.
func trackLineString(points []core.RoutePoint) geom.Geometry {
	if len(points) < 2 {
		return geom.Geometry{}
	}
	coords := make([]float64, 0, len(points)*4)
	for _, p := range points {
		coords = append(coords, float64(p.GlobalX), float64(p.GlobalZ), float64(p.GlobalY), float64(p.TimestampMs))
	}
	seq := geom.NewSequence(coords, geom.DimXYZM)
	return geom.NewLineString(seq).AsGeometry()
}

// CoreToRoutePoint converts one trajectory sample to a GORM model.RoutePoint.
// seq is the sample's order within the route.
func CoreToRoutePoint(p core.RoutePoint, seq uint) model.RoutePoint {
	return model.RoutePoint{
		Seq:         seq,
		Position:    globalToPoint(p),
		Elevation:   p.GlobalY,
		LocalX:      p.X,
		LocalY:      p.Y,
		LocalZ:      p.Z,
		MapID:       p.MapID,
		MapName:     p.MapIDStr,
		TimestampMs: p.TimestampMs,
		OnTorrent:   p.OnTorrent,
	}
}

// CoreToRoute converts a trajectory document to a GORM model.Route with its
// point rows and track geometry. filePath records where the document lives.
func CoreToRoute(r core.SavedRoute, filePath string) model.Route {
	recordedAt, err := time.ParseInLocation(recordedAtLayout, r.RecordedAt, time.Local)
	if err != nil {
		recordedAt = time.Time{}
	}

	points := make([]model.RoutePoint, 0, len(r.Points))
	for i, p := range r.Points {
		points = append(points, CoreToRoutePoint(p, uint(i)))
	}

	return model.Route{
		Name:         r.Name,
		RecordedAt:   recordedAt,
		DurationSecs: r.DurationSecs,
		IntervalMs:   r.IntervalMs,
		PointCount:   r.PointCount,
		FilePath:     filePath,
		Track:        trackLineString(r.Points),
		Points:       points,
	}
}

// RoutePointToCore converts a GORM model.RoutePoint back to a trajectory sample.
// Global x/z come from the stored geometry, elevation from its own column.
func RoutePointToCore(p model.RoutePoint) core.RoutePoint {
	sample := core.RoutePoint{
		X:           p.LocalX,
		Y:           p.LocalY,
		Z:           p.LocalZ,
		GlobalY:     p.Elevation,
		MapID:       p.MapID,
		MapIDStr:    p.MapName,
		TimestampMs: p.TimestampMs,
		OnTorrent:   p.OnTorrent,
	}
	if coord, ok := p.Position.Coordinates(); ok {
		sample.GlobalX = float32(coord.XY.X)
		sample.GlobalZ = float32(coord.XY.Y)
	}
	return sample
}

// RouteToCore converts a GORM model.Route back to a trajectory document.
func RouteToCore(r model.Route) core.SavedRoute {
	recordedAt := ""
	if !r.RecordedAt.IsZero() {
		recordedAt = r.RecordedAt.Format(recordedAtLayout)
	}

	points := make([]core.RoutePoint, 0, len(r.Points))
	for _, p := range r.Points {
		points = append(points, RoutePointToCore(p))
	}

	return core.SavedRoute{
		Name:         r.Name,
		RecordedAt:   recordedAt,
		DurationSecs: r.DurationSecs,
		IntervalMs:   r.IntervalMs,
		PointCount:   r.PointCount,
		Points:       points,
	}
}
