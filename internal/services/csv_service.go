package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"chpopstat/internal/models"
)

// statField identifies a column the parser extracts.
type statField int

const (
	fieldRegionID statField = iota
	fieldTotal
	fieldFemale
	fieldMale
	numFields
)

func (f statField) String() string {
	switch f {
	case fieldRegionID:
		return "RELI"
	case fieldTotal:
		return "BxxBTOT"
	case fieldFemale:
		return "BxxBWTOT"
	case fieldMale:
		return "BxxBMTOT"
	}
	return fmt.Sprintf("statField(%d)", int(f))
}

// Statistic columns carry the survey year, as in B18BTOT or B21BWTOT.
var statColumnPattern = regexp.MustCompile(`^B[0-9]{2}([A-Z]+)$`)

func statColumn(suffix string) func(string) bool {
	return func(name string) bool {
		m := statColumnPattern.FindStringSubmatch(name)
		return m != nil && m[1] == suffix
	}
}

// columnRules maps header names to the fields they populate.
var columnRules = []struct {
	field statField
	match func(name string) bool
}{
	{fieldRegionID, func(name string) bool { return name == "RELI" }},
	{fieldTotal, statColumn("BTOT")},
	{fieldFemale, statColumn("BWTOT")},
	{fieldMale, statColumn("BMTOT")},
}

// columnIndex holds the 0-based column of each field, or -1 if absent.
type columnIndex [numFields]int

func newColumnIndex(header []string) columnIndex {
	var idx columnIndex
	for f := range idx {
		idx[f] = -1
	}
	for col, name := range header {
		name = strings.TrimSpace(name)
		if col == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		for _, rule := range columnRules {
			if rule.match(name) {
				idx[rule.field] = col
			}
		}
	}
	return idx
}

// CSVParser reads population statistics published by the Swiss Federal
// Statistical Office, one statistical region per line.
//
// Columns are located by name in the header line. A missing statistic
// column yields zero for every row; a missing RELI column yields region
// ID 0. Fields that are not numbers count as zero.
type CSVParser struct {
	reader    *csv.Reader
	columns   columnIndex
	hasHeader bool
	line      int
	regionID  uint64
	stats     models.PopulationStats
	err       error
}

// NewCSVParser reads the header line from r. A zero delimiter means ','.
func NewCSVParser(r io.Reader, delimiter rune) *CSVParser {
	if delimiter == 0 {
		delimiter = ','
	}
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	p := &CSVParser{reader: reader, line: 1}
	header, err := reader.Read()
	switch {
	case errors.Is(err, io.EOF):
		p.reader = nil
	case err != nil:
		p.err = fmt.Errorf("error reading CSV header: %w", err)
	default:
		p.columns = newColumnIndex(header)
		p.hasHeader = true
	}
	return p
}

// Next advances to the next data line. It returns false at the end of the
// input or on a read error, see Err. The region ID and stats are reset to
// zero on every call.
func (p *CSVParser) Next() bool {
	p.regionID = 0
	p.stats = models.PopulationStats{}
	if p.reader == nil || p.err != nil {
		return false
	}

	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return false
	}
	p.line++
	if err != nil {
		p.err = fmt.Errorf("error reading CSV line %d: %w", p.line, err)
		return false
	}

	for f, col := range p.columns {
		if col < 0 || col >= len(record) {
			continue
		}
		value := parseCount(record[col])
		if value < 0 {
			value = 0
		}
		switch statField(f) {
		case fieldRegionID:
			p.regionID = uint64(value)
		case fieldTotal:
			p.stats.Total += float64(value)
		case fieldFemale:
			p.stats.Female += float64(value)
		case fieldMale:
			p.stats.Male += float64(value)
		}
	}
	return true
}

// RegionID returns the register ID of the current line.
func (p *CSVParser) RegionID() uint64 { return p.regionID }

// Stats returns the statistics of the current line.
func (p *CSVParser) Stats() models.PopulationStats { return p.stats }

// Line returns the 1-based line number of the current line.
func (p *CSVParser) Line() int { return p.line }

// Err returns the first read error, if any.
func (p *CSVParser) Err() error { return p.err }

// MissingColumns names the expected columns not found in the header.
func (p *CSVParser) MissingColumns() []string {
	if !p.hasHeader {
		return nil
	}
	var missing []string
	for f, col := range p.columns {
		if col < 0 {
			missing = append(missing, statField(f).String())
		}
	}
	return missing
}

// parseCount parses the leading integer of s. Anything unparsable is 0.
func parseCount(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
