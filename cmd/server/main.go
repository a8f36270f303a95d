package main

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"chpopstat/internal/config"
	"chpopstat/internal/handlers"
)

const (
	AppVersion = "1.0.0"
)

func main() {
	configFile := pflag.String("config", "config.json", "JSON configuration file")
	envFile := pflag.String("env-file", ".env", "dotenv file with environment overrides")
	pflag.Parse()

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.SetupLogging()

	log.Printf("Starting chpopstat server v%s", AppVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := handlers.ListenAndServe(ctx, cfg); err != nil {
		log.Errorf("Error starting server: %v", err)
		os.Exit(1)
	}
}
