package geometry

import (
	"fmt"

	"github.com/golang/geo/s2"

	"chpopstat/internal/models"
)

// DefaultMaxCells bounds the size of a covering so that a pathological
// region cannot produce an unbounded number of cells.
const DefaultMaxCells = 10000

// OverlapComputer finds the cells of one S2 level overlapping a region
// and how much of the region falls into each of them.
type OverlapComputer struct {
	engine   Engine
	maxCells int
}

// NewOverlapComputer creates an OverlapComputer. A non-positive maxCells
// falls back to DefaultMaxCells.
func NewOverlapComputer(engine Engine, maxCells int) *OverlapComputer {
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	return &OverlapComputer{engine: engine, maxCells: maxCells}
}

// ValidateLevel checks that level is a valid S2 subdivision level.
func ValidateLevel(level int) error {
	if level < 0 || level > s2.MaxLevel {
		return fmt.Errorf("%w: %d (expected 0..%d)", ErrInvalidLevel, level, s2.MaxLevel)
	}
	return nil
}

// Overlaps returns one entry per covering cell of the given level. The
// fractions sum to roughly 1; cells the covering over-approximates may
// carry a fraction of zero.
func (c *OverlapComputer) Overlaps(loop []s2.Point, level int) ([]models.OverlapFraction, error) {
	if err := ValidateLevel(level); err != nil {
		return nil, err
	}
	region, err := c.engine.BuildPolygon(loop)
	if err != nil {
		return nil, err
	}
	cells, err := c.engine.Covering(region, level, c.maxCells)
	if err != nil {
		return nil, err
	}

	out := make([]models.OverlapFraction, 0, len(cells))
	for _, id := range cells {
		cellPoly, err := c.engine.CellPolygon(id)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", id.ToToken(), err)
		}
		f, err := c.engine.OverlapFraction(region, cellPoly)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", id.ToToken(), err)
		}
		out = append(out, models.OverlapFraction{CellID: id, Fraction: f})
	}
	return out, nil
}
