package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds the settings of a conversion run and of the HTTP server.
type Config struct {
	Level         int    `json:"level"`
	Workers       int    `json:"workers"`
	MaxCells      int    `json:"max_cells"`
	ProgressEvery int    `json:"progress_every"`
	Delimiter     string `json:"delimiter"`
	Port          string `json:"port"`
	LogLevel      string `json:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Level:         17,
		Workers:       1,
		MaxCells:      10000,
		ProgressEvery: 1000,
		Delimiter:     ",",
		Port:          "8080",
		LogLevel:      "info",
	}
}

// Load builds the configuration from defaults, the JSON file at
// configPath, the dotenv file at envPath and finally the process
// environment. Missing files are skipped.
func Load(configPath, envPath string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		if configFile, err := os.Open(configPath); err == nil {
			defer configFile.Close()
			if err := json.NewDecoder(configFile).Decode(&cfg); err != nil {
				return cfg, fmt.Errorf("error parsing %s: %w", configPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("error opening %s: %w", configPath, err)
		}
	}

	if envPath != "" {
		// godotenv never overrides variables already set in the environment.
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("error loading %s: %w", envPath, err)
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"CHPOPSTAT_LEVEL", &cfg.Level},
		{"CHPOPSTAT_WORKERS", &cfg.Workers},
		{"CHPOPSTAT_MAX_CELLS", &cfg.MaxCells},
		{"CHPOPSTAT_PROGRESS_EVERY", &cfg.ProgressEvery},
	}
	for _, v := range ints {
		s, ok := os.LookupEnv(v.key)
		if !ok || s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dst = n
	}
	if s := os.Getenv("CHPOPSTAT_DELIMITER"); s != "" {
		cfg.Delimiter = s
	}
	if s := os.Getenv("PORT"); s != "" {
		cfg.Port = s
	}
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		cfg.LogLevel = s
	}
	return cfg, nil
}

// Validate checks the configuration for values the converter cannot use.
func (c Config) Validate() error {
	if c.Level < 0 || c.Level > 30 {
		return fmt.Errorf("level %d out of range 0..30", c.Level)
	}
	if c.MaxCells <= 0 {
		return fmt.Errorf("max_cells must be positive, got %d", c.MaxCells)
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// DelimiterRune returns the input field delimiter.
func (c Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// SetupLogging applies the configured log level to the standard logger.
func (c Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
