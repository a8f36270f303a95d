package models

import (
	"math"

	"github.com/golang/geo/s2"
	"golang.org/x/exp/slices"
)

// PopulationStats holds population counts for a geographic area.
//
// Counts are fractional so that a statistical region can be split across
// several S2 cells according to how much each cell overlaps the region.
// For example, when a cell covers 17.3% of a region, 17.3% of the region's
// population is accounted towards that cell.
type PopulationStats struct {
	Total  float64 `json:"total"`  // BTOT: permanent resident population, total
	Female float64 `json:"female"` // BWTOT: permanent resident population, female
	Male   float64 `json:"male"`   // BMTOT: permanent resident population, male
}

// Scale returns the stats multiplied by f.
func (p PopulationStats) Scale(f float64) PopulationStats {
	return PopulationStats{
		Total:  p.Total * f,
		Female: p.Female * f,
		Male:   p.Male * f,
	}
}

// Add returns the field-wise sum of p and o.
func (p PopulationStats) Add(o PopulationStats) PopulationStats {
	return PopulationStats{
		Total:  p.Total + o.Total,
		Female: p.Female + o.Female,
		Male:   p.Male + o.Male,
	}
}

// OverlapFraction tells which fraction of a region lies inside an S2 cell.
type OverlapFraction struct {
	CellID   s2.CellID
	Fraction float64
}

// CellPopulationStats accumulates population per S2 cell.
//
// Values only ever grow by addition, because several statistical regions
// may overlap the same cell. It is not safe for concurrent use; callers
// running overlap computations in parallel must funnel merges through a
// single goroutine.
type CellPopulationStats struct {
	cells map[s2.CellID]PopulationStats
}

// NewCellPopulationStats creates an empty accumulator.
func NewCellPopulationStats() *CellPopulationStats {
	return &CellPopulationStats{cells: make(map[s2.CellID]PopulationStats)}
}

// Add merges stats into the entry for cellID, creating it if needed.
func (c *CellPopulationStats) Add(cellID s2.CellID, stats PopulationStats) {
	c.cells[cellID] = c.cells[cellID].Add(stats)
}

// Distribute spreads the stats of one region over the cells it overlaps,
// weighted by the overlap fraction of each cell.
func (c *CellPopulationStats) Distribute(stats PopulationStats, overlaps []OverlapFraction) {
	for _, ov := range overlaps {
		c.Add(ov.CellID, stats.Scale(ov.Fraction))
	}
}

// Get returns the accumulated stats for cellID.
func (c *CellPopulationStats) Get(cellID s2.CellID) (PopulationStats, bool) {
	s, ok := c.cells[cellID]
	return s, ok
}

// Len returns the number of cells seen so far.
func (c *CellPopulationStats) Len() int {
	return len(c.cells)
}

// CellIDs returns all accumulated cell IDs in ascending order.
func (c *CellPopulationStats) CellIDs() []s2.CellID {
	ids := make([]s2.CellID, 0, len(c.cells))
	for id := range c.cells {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Sum returns the stats summed over all cells.
func (c *CellPopulationStats) Sum() PopulationStats {
	var sum PopulationStats
	for _, id := range c.CellIDs() {
		sum = sum.Add(c.cells[id])
	}
	return sum
}

// RenderedRow is one line of converted output.
type RenderedRow struct {
	CellID s2.CellID
	Total  int64
	Female int64
	Male   int64
}

// RenderRow rounds accumulated stats to whole persons.
//
// Total and female are rounded half away from zero; female is clamped to
// total so that rounding noise never yields more women than people, and
// male is derived as total minus female. The second result is false when
// the rounded total is not positive, in which case the cell is suppressed.
func RenderRow(cellID s2.CellID, stats PopulationStats) (RenderedRow, bool) {
	total := int64(math.Round(stats.Total))
	if total <= 0 {
		return RenderedRow{}, false
	}
	female := int64(math.Round(stats.Female))
	if female > total {
		female = total
	}
	if female < 0 {
		female = 0
	}
	return RenderedRow{
		CellID: cellID,
		Total:  total,
		Female: female,
		Male:   total - female,
	}, true
}

// Rows renders every cell with a non-zero rounded total, ordered by cell ID.
func (c *CellPopulationStats) Rows() []RenderedRow {
	rows := make([]RenderedRow, 0, len(c.cells))
	for _, id := range c.CellIDs() {
		if row, ok := RenderRow(id, c.cells[id]); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// CellCounts counts occurrences per S2 cell, such as geotagged media.
type CellCounts struct {
	counts map[s2.CellID]int64
}

// NewCellCounts creates an empty counter.
func NewCellCounts() *CellCounts {
	return &CellCounts{counts: make(map[s2.CellID]int64)}
}

// Inc adds one to the count of cellID.
func (c *CellCounts) Inc(cellID s2.CellID) { c.counts[cellID]++ }

// Get returns the count of cellID.
func (c *CellCounts) Get(cellID s2.CellID) int64 { return c.counts[cellID] }

func (c *CellCounts) Len() int { return len(c.counts) }

// CellIDs returns all counted cell IDs in ascending order.
func (c *CellCounts) CellIDs() []s2.CellID {
	ids := make([]s2.CellID, 0, len(c.counts))
	for id := range c.counts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
