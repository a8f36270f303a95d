package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHPOPSTAT_LEVEL", "CHPOPSTAT_WORKERS", "CHPOPSTAT_MAX_CELLS",
		"CHPOPSTAT_PROGRESS_EVERY", "CHPOPSTAT_DELIMITER", "PORT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "config.json"), filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ',', cfg.DelimiterRune())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"level": 16, "workers": 4, "delimiter": ";"}`), 0o644))

	t.Setenv("CHPOPSTAT_WORKERS", "8")
	cfg, err := Load(configPath, "")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Level)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, ';', cfg.DelimiterRune())
	assert.Equal(t, 10000, cfg.MaxCells)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CHPOPSTAT_MAX_CELLS=500\n"), 0o644))
	// godotenv leaves variables that are already set alone.
	require.NoError(t, os.Unsetenv("CHPOPSTAT_MAX_CELLS"))
	t.Cleanup(func() { os.Unsetenv("CHPOPSTAT_MAX_CELLS") })

	cfg, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxCells)
}

func TestLoadInvalidEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHPOPSTAT_LEVEL", "seventeen")
	_, err := Load("", "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"level too high":    func(c *Config) { c.Level = 31 },
		"negative level":    func(c *Config) { c.Level = -1 },
		"no cells":          func(c *Config) { c.MaxCells = 0 },
		"long delimiter":    func(c *Config) { c.Delimiter = ",;" },
		"empty delimiter":   func(c *Config) { c.Delimiter = "" },
		"unknown log level": func(c *Config) { c.LogLevel = "chatty" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetDataFilePath(t *testing.T) {
	old := DataDir
	t.Cleanup(func() { DataDir = old })
	DataDir = "/srv/data"

	assert.Equal(t, "/srv/data/statpop.csv", GetDataFilePath("statpop.csv"))
	assert.Equal(t, "/tmp/x.csv", GetDataFilePath("/tmp/x.csv"))
	assert.Equal(t, "-", GetDataFilePath("-"))
}
