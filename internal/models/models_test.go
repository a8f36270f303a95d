package models

import (
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributeAccumulates(t *testing.T) {
	a := s2.CellIDFromToken("478c7d241")
	b := s2.CellIDFromToken("478c7d243")
	acc := NewCellPopulationStats()

	acc.Distribute(PopulationStats{Total: 10, Female: 6, Male: 4}, []OverlapFraction{
		{CellID: a, Fraction: 0.25},
		{CellID: b, Fraction: 0.75},
	})
	acc.Distribute(PopulationStats{Total: 4, Female: 2, Male: 2}, []OverlapFraction{
		{CellID: b, Fraction: 1},
	})

	require.Equal(t, 2, acc.Len())
	sa, ok := acc.Get(a)
	require.True(t, ok)
	assert.InDelta(t, 2.5, sa.Total, 1e-12)
	assert.InDelta(t, 1.5, sa.Female, 1e-12)
	assert.InDelta(t, 1.0, sa.Male, 1e-12)

	sb, ok := acc.Get(b)
	require.True(t, ok)
	assert.InDelta(t, 11.5, sb.Total, 1e-12)
	assert.InDelta(t, 6.5, sb.Female, 1e-12)
	assert.InDelta(t, 5.0, sb.Male, 1e-12)

	sum := acc.Sum()
	assert.InDelta(t, 14, sum.Total, 1e-12)
	assert.InDelta(t, 8, sum.Female, 1e-12)
	assert.InDelta(t, 6, sum.Male, 1e-12)
}

func TestDistributeNearZeroFraction(t *testing.T) {
	acc := NewCellPopulationStats()
	id := s2.CellIDFromToken("478e39be5")
	acc.Distribute(PopulationStats{Total: 4, Female: 3, Male: 3}, []OverlapFraction{{CellID: id, Fraction: 0}})

	s, ok := acc.Get(id)
	require.True(t, ok)
	assert.Zero(t, s.Total)
	assert.Empty(t, acc.Rows())
}

func TestCellIDsAscending(t *testing.T) {
	acc := NewCellPopulationStats()
	ids := []s2.CellID{
		s2.CellIDFromToken("478e39be5"),
		s2.CellIDFromToken("478c7d241"),
		s2.CellIDFromToken("478c7d26b"),
	}
	for _, id := range ids {
		acc.Add(id, PopulationStats{Total: 1})
	}
	got := acc.CellIDs()
	require.Len(t, got, 3)
	assert.Equal(t, "478c7d241", got[0].ToToken())
	assert.Equal(t, "478c7d26b", got[1].ToToken())
	assert.Equal(t, "478e39be5", got[2].ToToken())
}

func TestRenderRow(t *testing.T) {
	id := s2.CellIDFromToken("478c7d241")
	tests := []struct {
		name   string
		stats  PopulationStats
		want   RenderedRow
		wantOK bool
	}{
		{
			name:   "plain",
			stats:  PopulationStats{Total: 9.2, Female: 4.4, Male: 4.8},
			want:   RenderedRow{CellID: id, Total: 9, Female: 4, Male: 5},
			wantOK: true,
		},
		{
			name:   "half rounds away from zero",
			stats:  PopulationStats{Total: 2.5, Female: 1.5},
			want:   RenderedRow{CellID: id, Total: 3, Female: 2, Male: 1},
			wantOK: true,
		},
		{
			name:   "female clamped to total",
			stats:  PopulationStats{Total: 3.4, Female: 3.6, Male: 0},
			want:   RenderedRow{CellID: id, Total: 3, Female: 3, Male: 0},
			wantOK: true,
		},
		{
			name:   "male derived rather than rounded",
			stats:  PopulationStats{Total: 4, Female: 3, Male: 3},
			want:   RenderedRow{CellID: id, Total: 4, Female: 3, Male: 1},
			wantOK: true,
		},
		{
			name:   "rounded zero suppressed",
			stats:  PopulationStats{Total: 0.49, Female: 0.3, Male: 0.2},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RenderRow(id, tt.stats)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Total, got.Female+got.Male)
			assert.LessOrEqual(t, got.Female, got.Total)
		})
	}
}

func TestCellCounts(t *testing.T) {
	a := s2.CellIDFromToken("478c7d241")
	b := s2.CellIDFromToken("478c7d243")
	c := NewCellCounts()
	c.Inc(b)
	c.Inc(a)
	c.Inc(b)

	assert.Equal(t, 2, c.Len())
	assert.EqualValues(t, 1, c.Get(a))
	assert.EqualValues(t, 2, c.Get(b))
	assert.Zero(t, c.Get(s2.CellIDFromToken("478e39be5")))
	assert.Equal(t, []s2.CellID{a, b}, c.CellIDs())
}
