package swissgrid

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s2"
	sfgeom "github.com/peterstace/simplefeatures/geom"
	"github.com/twpayne/go-geom"
)

// RegionSize is the edge length of a statistical region in meters.
const RegionSize = 100.0

// ErrDegenerateRegion is returned when a register ID does not describe a
// usable square on the globe.
var ErrDegenerateRegion = errors.New("degenerate statistical region")

// RegionOrigin returns the grid coordinates of the south-west corner of a
// region. The upper four digits of the eight-digit register ID are the
// easting in hectometers, the lower four digits the northing.
func RegionOrigin(regionID uint64) (y, x float64) {
	return float64(regionID/10000) * RegionSize, float64(regionID%10000) * RegionSize
}

// RegionSquare returns the planar square of a region in grid coordinates,
// with X holding the easting and Y the northing. The ring runs
// (y,x), (y+1,x), (y+1,x+1), (y,x+1) and is closed.
func RegionSquare(regionID uint64) *geom.Polygon {
	y, x := RegionOrigin(regionID)
	y1, x1 := y+RegionSize, x+RegionSize
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{y, x},
		{y1, x},
		{y1, x1},
		{y, x1},
		{y, x},
	}})
}

// validateSquare checks the planar square before it gets projected.
func validateSquare(square *geom.Polygon) error {
	ring := sfgeom.NewLineString(sfgeom.NewSequence(square.FlatCoords(), sfgeom.DimXY))
	poly := sfgeom.NewPolygon([]sfgeom.LineString{ring})
	if err := poly.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerateRegion, err)
	}
	if poly.Area() <= 0 {
		return fmt.Errorf("%w: zero area", ErrDegenerateRegion)
	}
	return nil
}

// RegionLoop returns the four corners of a region as points on the unit
// sphere, counter-clockwise, in the order of RegionSquare.
func RegionLoop(regionID uint64) ([]s2.Point, error) {
	square := RegionSquare(regionID)
	if err := validateSquare(square); err != nil {
		return nil, fmt.Errorf("region %d: %w", regionID, err)
	}

	coords := square.LinearRing(0).Coords()
	// The last coordinate closes the ring; S2 loops are implicitly closed.
	points := make([]s2.Point, 0, len(coords)-1)
	for _, c := range coords[:len(coords)-1] {
		ll := GridToLatLng(c.X(), c.Y())
		if !ll.IsValid() {
			return nil, fmt.Errorf("region %d: %w: corner %v maps to %v", regionID, ErrDegenerateRegion, c, ll)
		}
		points = append(points, s2.PointFromLatLng(ll))
	}
	return points, nil
}
