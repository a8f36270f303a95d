package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"chpopstat/internal/geometry"
	"chpopstat/internal/services"
)

var outputFormats = []string{"csv", "geojson"}

// ConvertHandler converts uploaded STATPOP tables to S2 cell statistics
type ConvertHandler struct {
	convertService *services.ConvertService
	defaultLevel   int
}

// NewConvertHandler creates a new ConvertHandler instance
func NewConvertHandler(convertService *services.ConvertService, defaultLevel int) *ConvertHandler {
	return &ConvertHandler{
		convertService: convertService,
		defaultLevel:   defaultLevel,
	}
}

// HandleConvert handles POST /convert?level=N&format=csv|geojson with the
// statistics table as request body.
func (h *ConvertHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	level := h.defaultLevel
	if s := r.URL.Query().Get("level"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || geometry.ValidateLevel(l) != nil {
			http.Error(w, "Level must be an integer between 0 and 30", http.StatusBadRequest)
			return
		}
		level = l
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if !slices.Contains(outputFormats, format) {
		http.Error(w, "Format must be either 'csv' or 'geojson'", http.StatusBadRequest)
		return
	}

	cells, summary, err := h.convertService.Accumulate(r.Context(), r.Body, level)
	if err != nil {
		log.WithError(err).Error("Error converting statistics")
		http.Error(w, "Error processing request", http.StatusInternalServerError)
		return
	}

	// Render into a buffer so that failures still produce a proper status.
	var body bytes.Buffer
	if format == "geojson" {
		summary.Emitted, err = services.WriteGeoJSON(&body, cells)
		w.Header().Set("Content-Type", "application/geo+json")
	} else {
		summary.Emitted, err = services.WriteCSV(&body, cells)
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	}
	if err != nil {
		log.WithError(err).Error("Error rendering result")
		http.Error(w, "Error encoding response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Skipped-Rows", strconv.Itoa(summary.Skipped))
	if _, err := body.WriteTo(w); err != nil {
		log.WithError(err).Warn("Error writing response")
		return
	}

	// Log processing time
	log.WithFields(log.Fields{
		"level":   level,
		"format":  format,
		"rows":    summary.Rows,
		"skipped": summary.Skipped,
		"emitted": summary.Emitted,
	}).Infof("Request processed in %v", time.Since(startTime))
}
