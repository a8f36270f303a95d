// Package geometry computes how statistical regions overlap S2 cells.
//
// The spherical work is delegated to an Engine so that the overlap logic
// does not depend on one particular geometry library.
package geometry

import (
	"errors"

	"github.com/golang/geo/s2"
)

var (
	// ErrInvalidPolygon is returned for loops the engine cannot work with,
	// such as self-intersecting, inverted or zero-area loops.
	ErrInvalidPolygon = errors.New("invalid polygon")

	// ErrInvalidLevel is returned for subdivision levels outside 0..s2.MaxLevel.
	ErrInvalidLevel = errors.New("invalid S2 level")

	// ErrCoveringTooLarge is returned when covering a polygon at the
	// requested level would take more cells than allowed.
	ErrCoveringTooLarge = errors.New("covering exceeds cell limit")
)

// Polygon is a spherical polygon built by an Engine.
type Polygon interface {
	// Area returns the area in steradians.
	Area() float64
	NumVertices() int
	Vertex(i int) s2.Point
}

// Engine is the set of spherical geometry capabilities needed to
// distribute statistics onto cells.
type Engine interface {
	// BuildPolygon builds a polygon from a counter-clockwise vertex loop.
	BuildPolygon(loop []s2.Point) (Polygon, error)

	// Covering returns the cells of exactly the given level that cover p.
	// It fails with ErrCoveringTooLarge if more than maxCells cells are
	// needed; a non-positive maxCells means DefaultMaxCells.
	Covering(p Polygon, level, maxCells int) ([]s2.CellID, error)

	// CellPolygon returns the polygon of a cell.
	CellPolygon(id s2.CellID) (Polygon, error)

	// OverlapFraction returns the fraction of a's area that lies inside b.
	OverlapFraction(a, b Polygon) (float64, error)
}
