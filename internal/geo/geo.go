package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEOREFERENCE
// The game world carries no real-world datum, so viewer exports use a
// synthetic one: the world origin sits at 0°N 0°E and one game unit equals
// one metre of easting/northing. Global x runs east, global z runs north;
// elevation y takes no part in the projection. Exports are EPSG:3857 so
// web-mercator viewers can draw tracks without reprojecting.

// metersPerDegree is the length of one degree of longitude on the WGS84
// equator.
const metersPerDegree = 6378137 * math.Pi / 180

// ErrInvalidCoordinates is returned when coordinates cannot be parsed or projected
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// LonLat maps a global ground-plane position onto the synthetic graticule.
func LonLat(x, z float32) (lon, lat float64) {
	return float64(x) / metersPerDegree, float64(z) / metersPerDegree
}

// Point3857 projects a global ground-plane position to a web-mercator point.
func Point3857(x, z float32) (geom.Point, error) {
	lon, lat := LonLat(x, z)
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	east, north, _ := f(lon, lat, 0)
	if math.IsNaN(east) || math.IsInf(east, 0) || math.IsNaN(north) || math.IsInf(north, 0) {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	point := geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: east, Y: north},
		},
	)
	return point, nil
}

// ParseCoordString parses an "x,z" or "x,z,y" global coordinate string as
// typed on the console. Components beyond the third are ignored.
func ParseCoordString(coords string) (x, z, y float32, err error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	xParsed, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 32)
	if err != nil {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	zParsed, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 32)
	if err != nil {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	var yParsed float64
	if len(coordsSplit) > 2 {
		yParsed, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 32)
		if err != nil {
			return 0, 0, 0, ErrInvalidCoordinates
		}
	}
	return float32(xParsed), float32(zParsed), float32(yParsed), nil
}

// Distance2D is the ground-plane distance between two global positions, in
// game units.
func Distance2D(ax, az, bx, bz float32) float64 {
	dx := float64(bx) - float64(ax)
	dz := float64(bz) - float64(az)
	return math.Sqrt(dx*dx + dz*dz)
}
