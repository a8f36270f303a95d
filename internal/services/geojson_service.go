package services

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"chpopstat/internal/models"
)

// cellToPolygon converts an S2 cell into a closed lng/lat polygon.
func cellToPolygon(id s2.CellID) (*geom.Polygon, error) {
	cell := s2.CellFromCellID(id)
	ring := make([]geom.Coord, 0, 5)
	for k := 0; k < 4; k++ {
		ll := s2.LatLngFromPoint(cell.Vertex(k))
		ring = append(ring, geom.Coord{ll.Lng.Degrees(), ll.Lat.Degrees()})
	}
	ring = append(ring, ring[0])
	return geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
}

// WriteGeoJSON writes the same cells as WriteCSV as a GeoJSON
// FeatureCollection of cell polygons. It returns the number of features.
func WriteGeoJSON(w io.Writer, cells *models.CellPopulationStats) (int, error) {
	rows := cells.Rows()
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(rows))}
	for _, row := range rows {
		poly, err := cellToPolygon(row.CellID)
		if err != nil {
			return 0, fmt.Errorf("error creating polygon for cell %s: %w", row.CellID.ToToken(), err)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       row.CellID.ToToken(),
			Geometry: poly,
			Properties: map[string]interface{}{
				"cellId": row.CellID.ToToken(),
				"total":  row.Total,
				"female": row.Female,
				"male":   row.Male,
			},
		})
	}
	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return 0, fmt.Errorf("error encoding GeoJSON: %w", err)
	}
	return len(rows), nil
}
