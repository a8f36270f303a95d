package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// s2Polygon is a single-loop polygon backed by github.com/golang/geo/s2.
type s2Polygon struct {
	loop     *s2.Loop
	poly     *s2.Polygon
	vertices []s2.Point
	convex   bool
	area     float64
}

func (p *s2Polygon) Area() float64         { return p.area }
func (p *s2Polygon) NumVertices() int      { return len(p.vertices) }
func (p *s2Polygon) Vertex(i int) s2.Point { return p.vertices[i] }

// S2Engine implements Engine on top of the Go port of the S2 library.
//
// Overlaps are computed by clipping the first polygon against the great
// circles bounding the second one, which therefore has to be convex. S2
// cells always are.
type S2Engine struct{}

// NewS2Engine returns an S2-backed Engine.
func NewS2Engine() *S2Engine {
	return &S2Engine{}
}

func newS2Polygon(loop *s2.Loop, vertices []s2.Point) *s2Polygon {
	return &s2Polygon{
		loop:     loop,
		poly:     s2.PolygonFromLoops([]*s2.Loop{loop}),
		vertices: vertices,
		convex:   isConvex(vertices),
		area:     ringArea(vertices),
	}
}

func (e *S2Engine) BuildPolygon(vertices []s2.Point) (Polygon, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", ErrInvalidPolygon, len(vertices))
	}
	if selfIntersects(vertices) {
		return nil, fmt.Errorf("%w: loop crosses itself", ErrInvalidPolygon)
	}
	loop := s2.LoopFromPoints(vertices)
	if err := loop.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}
	if !loop.IsNormalized() {
		return nil, fmt.Errorf("%w: loop is not counter-clockwise", ErrInvalidPolygon)
	}
	p := newS2Polygon(loop, vertices)
	if p.area <= 0 {
		return nil, fmt.Errorf("%w: zero area", ErrInvalidPolygon)
	}
	return p, nil
}

func (e *S2Engine) Covering(p Polygon, level, maxCells int) ([]s2.CellID, error) {
	sp, ok := p.(*s2Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: %T was not built by S2Engine", ErrInvalidPolygon, p)
	}
	if level < 0 || level > s2.MaxLevel {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}

	// The coverer ignores MaxCells when MinLevel == MaxLevel.
	if estimate := sp.area / s2.AvgAreaMetric.Value(level); estimate > float64(maxCells) {
		return nil, fmt.Errorf("%w: about %.0f cells at level %d, limit %d",
			ErrCoveringTooLarge, estimate, level, maxCells)
	}
	rc := &s2.RegionCoverer{MinLevel: level, MaxLevel: level, LevelMod: 1, MaxCells: maxCells}
	cells := rc.Covering(sp.poly)
	if len(cells) > maxCells {
		return nil, fmt.Errorf("%w: %d cells at level %d, limit %d",
			ErrCoveringTooLarge, len(cells), level, maxCells)
	}
	return cells, nil
}

func (e *S2Engine) CellPolygon(id s2.CellID) (Polygon, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("%w: cell %v", ErrInvalidPolygon, id)
	}
	cell := s2.CellFromCellID(id)
	vertices := make([]s2.Point, 4)
	for k := range vertices {
		vertices[k] = cell.Vertex(k)
	}
	return newS2Polygon(s2.LoopFromCell(cell), vertices), nil
}

func (e *S2Engine) OverlapFraction(a, b Polygon) (float64, error) {
	sa, ok := a.(*s2Polygon)
	if !ok {
		return 0, fmt.Errorf("%w: %T was not built by S2Engine", ErrInvalidPolygon, a)
	}
	sb, ok := b.(*s2Polygon)
	if !ok {
		return 0, fmt.Errorf("%w: %T was not built by S2Engine", ErrInvalidPolygon, b)
	}
	if !sb.convex {
		return 0, fmt.Errorf("%w: clip polygon is not convex", ErrInvalidPolygon)
	}
	if sa.area <= 0 {
		return 0, fmt.Errorf("%w: zero area", ErrInvalidPolygon)
	}
	if !sa.loop.RectBound().Intersects(sb.loop.RectBound()) {
		return 0, nil
	}

	clipped := sa.vertices
	n := len(sb.vertices)
	for k := 0; k < n && len(clipped) > 0; k++ {
		normal := sb.vertices[k].Cross(sb.vertices[(k+1)%n].Vector)
		clipped = clipToHalfspace(clipped, normal)
	}
	f := ringArea(clipped) / sa.area
	return math.Max(0, math.Min(1, f)), nil
}

// clipToHalfspace keeps the part of a polygon where normal·p >= 0, that is
// the left side of the great circle with the given normal.
func clipToHalfspace(ring []s2.Point, normal r3.Vector) []s2.Point {
	out := make([]s2.Point, 0, len(ring)+1)
	add := func(p s2.Point) {
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	for i, cur := range ring {
		next := ring[(i+1)%len(ring)]
		dc, dn := normal.Dot(cur.Vector), normal.Dot(next.Vector)
		if dc >= 0 {
			add(cur)
		}
		if (dc >= 0) != (dn >= 0) {
			v := cur.Mul(math.Abs(dn)).Add(next.Mul(math.Abs(dc)))
			add(s2.Point{Vector: v.Normalize()})
		}
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil
	}
	return out
}

// ringArea returns the area enclosed by a small counter-clockwise ring,
// summing signed triangle areas of a fan around the first vertex.
func ringArea(ring []s2.Point) float64 {
	var area float64
	for i := 1; i+1 < len(ring); i++ {
		a, b, c := ring[0], ring[i], ring[i+1]
		switch s2.RobustSign(a, b, c) {
		case s2.CounterClockwise:
			area += s2.PointArea(a, b, c)
		case s2.Clockwise:
			area -= s2.PointArea(a, b, c)
		}
	}
	return math.Max(0, area)
}

// selfIntersects reports whether two non-adjacent edges of the ring touch.
func selfIntersects(ring []s2.Point) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a0, a1 := ring[i], ring[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if s2.CrossingSign(a0, a1, ring[j], ring[(j+1)%n]) != s2.DoNotCross {
				return true
			}
		}
	}
	return false
}

func isConvex(ring []s2.Point) bool {
	n := len(ring)
	for i := range ring {
		if s2.RobustSign(ring[i], ring[(i+1)%n], ring[(i+2)%n]) != s2.CounterClockwise {
			return false
		}
	}
	return true
}
