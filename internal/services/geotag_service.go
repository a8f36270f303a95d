package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/golang/geo/s2"
	log "github.com/sirupsen/logrus"

	"chpopstat/internal/geometry"
	"chpopstat/internal/models"
)

// GeotagHeader is the first line of a geotag count file.
var GeotagHeader = []string{"S2CellId", "Geotags"}

// A geo_tags row: gt_id, gt_page_id, gt_globe, gt_primary, gt_lat, gt_lon, ...
var geotagRow = regexp.MustCompile(`^[0-9]+,[0-9]+,'earth',[0-9]+,([0-9\-.]+),([0-9\-.]+),`)

// maxGeotagTuple bounds the bytes scanned for a single value tuple.
const maxGeotagTuple = 1 << 20

// GeotagParser reads coordinates from the geo_tags SQL dump of a
// MediaWiki installation. Rows on other globes are ignored.
type GeotagParser struct {
	scanner  *bufio.Scanner
	lat, lng float64
}

// NewGeotagParser reads an uncompressed SQL dump from r.
func NewGeotagParser(r io.Reader) *GeotagParser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxGeotagTuple)
	scanner.Split(splitTuples)
	return &GeotagParser{scanner: scanner}
}

// splitTuples yields the contents of each parenthesized value tuple.
func splitTuples(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if end := bytes.IndexByte(data, ')'); end >= 0 {
		start := bytes.IndexByte(data, '(')
		if start < 0 || start >= end {
			start = 0
		} else {
			start++
		}
		return end + 1, data[start:end], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Next advances to the next geotag on earth.
func (p *GeotagParser) Next() bool {
	for p.scanner.Scan() {
		m := geotagRow.FindSubmatch(p.scanner.Bytes())
		if m == nil {
			continue
		}
		lat, err1 := strconv.ParseFloat(string(m[1]), 64)
		lng, err2 := strconv.ParseFloat(string(m[2]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		p.lat, p.lng = lat, lng
		return true
	}
	p.lat, p.lng = 0, 0
	return false
}

// LatLng returns the coordinates of the current geotag.
func (p *GeotagParser) LatLng() s2.LatLng { return s2.LatLngFromDegrees(p.lat, p.lng) }

// Err returns the first read error, if any.
func (p *GeotagParser) Err() error { return p.scanner.Err() }

// CountGeotags counts the geotags of a dump per S2 cell of the given level.
// Tags at exactly 0,0 or outside the valid coordinate range are dropped as
// placeholders. It returns the counts and the number of tags counted.
func CountGeotags(ctx context.Context, r io.Reader, level int, logger log.FieldLogger) (*models.CellCounts, int, error) {
	if err := geometry.ValidateLevel(level); err != nil {
		return nil, 0, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	counts := models.NewCellCounts()
	parser := NewGeotagParser(r)
	n := 0
	for parser.Next() {
		if n%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, n, err
			}
		}
		ll := parser.LatLng()
		if (ll.Lat == 0 && ll.Lng == 0) || !ll.IsValid() {
			continue
		}
		counts.Inc(s2.CellIDFromLatLng(ll).Parent(level))
		n++
	}
	if err := parser.Err(); err != nil {
		return nil, n, fmt.Errorf("error reading geotags: %w", err)
	}
	logger.WithFields(log.Fields{
		"geotags": n,
		"cells":   counts.Len(),
		"level":   level,
	}).Info("Geotags counted")
	return counts, n, nil
}

// WriteGeotagCSV writes one line per cell, ordered by cell ID.
func WriteGeotagCSV(w io.Writer, counts *models.CellCounts) error {
	out := csv.NewWriter(w)
	if err := out.Write(GeotagHeader); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, id := range counts.CellIDs() {
		if err := out.Write([]string{id.ToToken(), strconv.FormatInt(counts.Get(id), 10)}); err != nil {
			return fmt.Errorf("error writing CSV: %w", err)
		}
	}
	out.Flush()
	return out.Error()
}
