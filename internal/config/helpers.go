package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// EnsureDirectories ensures all required directories exist.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Storage.MetaPath, c.Storage.VolPath}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// MetaFilePath returns the path to the <name>.akumuli metadata file.
func (c *StorageConfig) MetaFilePath() string {
	return filepath.Join(c.MetaPath, c.Name+".akumuli")
}

// VolumeFilePath returns the path to the i-th <name>_<i>.volume page file.
func (c *StorageConfig) VolumeFilePath(i int) string {
	return filepath.Join(c.VolPath, c.Name+"_"+strconv.Itoa(i)+".volume")
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}
