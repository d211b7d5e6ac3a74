package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/rbignon/ER-Route-tracker/pkg/core"
)

// trackProperties carries the document header alongside the geometry so a
// viewer can label the track without opening the source file.
type trackProperties struct {
	Name         string  `json:"name"`
	RecordedAt   string  `json:"recorded_at"`
	DurationSecs float64 `json:"duration_secs"`
	IntervalMs   uint64  `json:"interval_ms"`
	PointCount   int     `json:"point_count"`
}

type trackFeature struct {
	Type       string          `json:"type"`
	Geometry   geom.Geometry   `json:"geometry"`
	Properties trackProperties `json:"properties"`
}

// TrackLonLat builds the track geometry for a run on the synthetic
// graticule. A drawable track needs at least two samples.
func TrackLonLat(points []core.RoutePoint) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("track needs at least 2 points, got %d", len(points))
	}
	coords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		lon, lat := LonLat(p.GlobalX, p.GlobalZ)
		coords = append(coords, lon, lat)
	}
	seq := geom.NewSequence(coords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// RouteGeoJSON renders a saved run as a GeoJSON Feature whose geometry is the
// track on the synthetic graticule.
func RouteGeoJSON(doc *core.SavedRoute) ([]byte, error) {
	track, err := TrackLonLat(doc.Points)
	if err != nil {
		return nil, err
	}
	feature := trackFeature{
		Type:     "Feature",
		Geometry: track.AsGeometry(),
		Properties: trackProperties{
			Name:         doc.Name,
			RecordedAt:   doc.RecordedAt,
			DurationSecs: doc.DurationSecs,
			IntervalMs:   doc.IntervalMs,
			PointCount:   doc.PointCount,
		},
	}
	return json.Marshal(feature)
}
