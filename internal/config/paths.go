package config

import (
	"os"
	"path/filepath"
)

// DataDir is the base directory for relative data file paths
var DataDir string

func init() {
	// Get data directory from environment variable, default to the working directory
	if envDataDir := os.Getenv("DATA_DIR"); envDataDir != "" {
		DataDir = envDataDir
	} else {
		DataDir = "."
	}
}

// GetDataFilePath returns the full path for a data file given its name.
// Absolute paths and "-" (standard input or output) are returned unchanged.
func GetDataFilePath(filename string) string {
	if filename == "-" || filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(DataDir, filename)
}
