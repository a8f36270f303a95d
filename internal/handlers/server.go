package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"chpopstat/internal/config"
	"chpopstat/internal/services"
)

const shutdownTimeout = 10 * time.Second

// NewMux routes the conversion endpoint.
func NewMux(convertHandler *ConvertHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/convert", convertHandler.HandleConvert)
	return mux
}

// ListenAndServe serves the conversion endpoint on cfg.Port until ctx is
// canceled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, cfg config.Config) error {
	convertService := services.NewConvertService(services.OptionsFromConfig(cfg))
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: NewMux(NewConvertHandler(convertService, cfg.Level)),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Error shutting down server")
		}
	}()

	log.Printf("Server starting on port %s (default level %d)...", cfg.Port, cfg.Level)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
