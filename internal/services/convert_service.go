package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"chpopstat/internal/config"
	"chpopstat/internal/geometry"
	"chpopstat/internal/models"
	"chpopstat/internal/swissgrid"
)

// OutputHeader is the first line of every converted file.
var OutputHeader = []string{"S2CellId", "TotalPopulation", "FemalePopulation", "MalePopulation"}

// Options configures a ConvertService. Zero values pick defaults.
type Options struct {
	Engine        geometry.Engine
	Workers       int
	MaxCells      int
	ProgressEvery int
	Delimiter     rune
	Logger        log.FieldLogger
}

// Summary describes a finished conversion run.
type Summary struct {
	Rows    int // data lines read
	Skipped int // lines whose region geometry was unusable
	Cells   int // cells that received any share of population
	Emitted int // cells written to the output
}

// ConvertService distributes the population of Swiss statistical regions
// onto S2 cells.
type ConvertService struct {
	computer      *geometry.OverlapComputer
	workers       int
	progressEvery int
	delimiter     rune
	logger        log.FieldLogger
}

// NewConvertService creates a new ConvertService instance
func NewConvertService(opts Options) *ConvertService {
	engine := opts.Engine
	if engine == nil {
		engine = geometry.NewS2Engine()
	}
	s := &ConvertService{
		computer:      geometry.NewOverlapComputer(engine, opts.MaxCells),
		workers:       opts.Workers,
		progressEvery: opts.ProgressEvery,
		delimiter:     opts.Delimiter,
		logger:        opts.Logger,
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.progressEvery <= 0 {
		s.progressEvery = 1000
	}
	if s.logger == nil {
		s.logger = log.StandardLogger()
	}
	return s
}

// OptionsFromConfig maps the run configuration onto service options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Workers:       cfg.Workers,
		MaxCells:      cfg.MaxCells,
		ProgressEvery: cfg.ProgressEvery,
		Delimiter:     cfg.DelimiterRune(),
	}
}

// RegionOverlaps returns the cells of the given level overlapping a region.
func (s *ConvertService) RegionOverlaps(regionID uint64, level int) ([]models.OverlapFraction, error) {
	loop, err := swissgrid.RegionLoop(regionID)
	if err != nil {
		return nil, err
	}
	overlaps, err := s.computer.Overlaps(loop, level)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", regionID, err)
	}
	return overlaps, nil
}

// isRowError tells whether err only concerns the geometry of one region.
func isRowError(err error) bool {
	return errors.Is(err, geometry.ErrInvalidPolygon) ||
		errors.Is(err, geometry.ErrCoveringTooLarge) ||
		errors.Is(err, swissgrid.ErrDegenerateRegion)
}

type regionJob struct {
	line     int
	regionID uint64
	stats    models.PopulationStats
}

type regionResult struct {
	regionJob
	overlaps []models.OverlapFraction
	err      error
}

// Accumulate reads all statistical regions from r and distributes them
// onto cells of the given level.
//
// Overlaps are computed by s.workers goroutines; the accumulator is only
// touched by the calling goroutine. Regions with unusable geometry are
// skipped and counted in the summary.
func (s *ConvertService) Accumulate(ctx context.Context, r io.Reader, level int) (*models.CellPopulationStats, Summary, error) {
	var summary Summary
	if err := geometry.ValidateLevel(level); err != nil {
		return nil, summary, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	parser := NewCSVParser(r, s.delimiter)
	if missing := parser.MissingColumns(); len(missing) > 0 {
		s.logger.WithField("columns", missing).Warn("Input lacks expected columns; using zero")
	}

	jobs := make(chan regionJob, s.workers)
	results := make(chan regionResult, s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				overlaps, err := s.RegionOverlaps(job.regionID, level)
				results <- regionResult{regionJob: job, overlaps: overlaps, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for parser.Next() {
			job := regionJob{line: parser.Line(), regionID: parser.RegionID(), stats: parser.Stats()}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	cells := models.NewCellPopulationStats()
	var fatal error
	for res := range results {
		if fatal != nil {
			continue
		}
		summary.Rows++
		if res.err != nil {
			if !isRowError(res.err) {
				fatal = res.err
				cancel()
				continue
			}
			summary.Skipped++
			s.logger.WithFields(log.Fields{
				"line":   res.line,
				"region": res.regionID,
			}).WithError(res.err).Warn("Skipping statistical region")
			continue
		}
		cells.Distribute(res.stats, res.overlaps)
		if summary.Rows%s.progressEvery == 0 {
			s.logger.WithFields(log.Fields{
				"rows":  summary.Rows,
				"cells": cells.Len(),
			}).Infof("Processing statistical region: %d", res.regionID)
		}
	}

	if fatal != nil {
		return nil, summary, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, summary, err
	}
	if err := parser.Err(); err != nil {
		return nil, summary, err
	}
	summary.Cells = cells.Len()
	if summary.Skipped > 0 {
		s.logger.WithField("skipped", summary.Skipped).Warn("Some statistical regions were skipped")
	}
	return cells, summary, nil
}

// Convert reads statistical regions from r and writes per-cell population
// counts as CSV to w.
func (s *ConvertService) Convert(ctx context.Context, r io.Reader, w io.Writer, level int) (Summary, error) {
	cells, summary, err := s.Accumulate(ctx, r, level)
	if err != nil {
		return summary, err
	}
	summary.Emitted, err = WriteCSV(w, cells)
	if err != nil {
		return summary, err
	}
	s.logger.WithFields(log.Fields{
		"rows":    summary.Rows,
		"skipped": summary.Skipped,
		"cells":   summary.Cells,
		"emitted": summary.Emitted,
		"level":   level,
	}).Info("Conversion finished")
	return summary, nil
}

// WriteCSV writes the header and one line per cell with a non-zero
// rounded total. It returns the number of cells written.
func WriteCSV(w io.Writer, cells *models.CellPopulationStats) (int, error) {
	out := csv.NewWriter(w)
	if err := out.Write(OutputHeader); err != nil {
		return 0, fmt.Errorf("error writing CSV header: %w", err)
	}
	rows := cells.Rows()
	for _, row := range rows {
		record := []string{
			row.CellID.ToToken(),
			strconv.FormatInt(row.Total, 10),
			strconv.FormatInt(row.Female, 10),
			strconv.FormatInt(row.Male, 10),
		}
		if err := out.Write(record); err != nil {
			return 0, fmt.Errorf("error writing CSV: %w", err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return 0, fmt.Errorf("error writing CSV: %w", err)
	}
	return len(rows), nil
}
