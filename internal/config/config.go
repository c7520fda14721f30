package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Akumuli AkumuliConfig `mapstructure:"akumuli"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig describes where the storage core keeps its files on disk.
type StorageConfig struct {
	Name     string `mapstructure:"name"`      // instance name, used to derive file names
	MetaPath string `mapstructure:"meta_path"` // directory holding <name>.akumuli
	VolPath  string `mapstructure:"vol_path"`  // directory holding <name>_<i>.volume files
	NumPages int    `mapstructure:"num_pages"` // size of the volume ring
}

// Durability describes the fsync policy for completed chunks (spec §6).
type Durability int

const (
	// DurabilityMax flushes (msync) once after every successful flush of
	// the sequencer, covering all the chunks that flush completed; chunks
	// are not synced one by one.
	DurabilityMax Durability = iota
	// DurabilityTradeoff flushes every 8th odd-generation flush.
	DurabilityTradeoff
	// DurabilitySpeed flushes only on rotation/close.
	DurabilitySpeed
)

func (d Durability) String() string {
	switch d {
	case DurabilityMax:
		return "max"
	case DurabilityTradeoff:
		return "tradeoff"
	case DurabilitySpeed:
		return "speed"
	default:
		return "unknown"
	}
}

// ParseDurability parses the mapstructure string form of Durability.
func ParseDurability(s string) (Durability, error) {
	switch s {
	case "max", "":
		return DurabilityMax, nil
	case "tradeoff":
		return DurabilityTradeoff, nil
	case "speed":
		return DurabilitySpeed, nil
	default:
		return DurabilityMax, fmt.Errorf("unknown durability policy %q", s)
	}
}

// AkumuliConfig holds the storage core tuning knobs enumerated in spec §6.
type AkumuliConfig struct {
	PageSize             int64         `mapstructure:"page_size"`
	WindowSize           time.Duration `mapstructure:"window_size"`
	CompressionThreshold int           `mapstructure:"compression_threshold"`
	MaxCacheSize         int64         `mapstructure:"max_cache_size"`
	Durability           string        `mapstructure:"durability"`
	EnableHugeTLB        bool          `mapstructure:"enable_huge_tlb"`
	CompressBlobs        bool          `mapstructure:"compress_blobs"`
	HistogramSize        int           `mapstructure:"histogram_size"`
	RunStripes           int           `mapstructure:"run_stripes"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen (others fall back to RFC3339)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.Akumuli.Validate(); err != nil {
		return fmt.Errorf("akumuli config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.MetaPath == "" {
		return fmt.Errorf("meta_path is required")
	}
	if c.VolPath == "" {
		return fmt.Errorf("vol_path is required")
	}
	if c.NumPages < 1 {
		return fmt.Errorf("num_pages must be at least 1")
	}
	return nil
}

// Validate validates the akumuli tuning knobs.
func (c *AkumuliConfig) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive")
	}
	if c.CompressionThreshold < 1 {
		return fmt.Errorf("compression_threshold must be at least 1")
	}
	if c.MaxCacheSize < 0 {
		return fmt.Errorf("max_cache_size cannot be negative")
	}
	if _, err := ParseDurability(c.Durability); err != nil {
		return err
	}
	if c.HistogramSize < 1 {
		return fmt.Errorf("histogram_size must be at least 1")
	}
	if c.RunStripes < 1 {
		return fmt.Errorf("run_stripes must be at least 1")
	}
	return nil
}

// Validate validates logging configuration.
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}
	return nil
}

// DefaultConfig returns a configuration populated with the spec §6 defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Name:     "akumuli",
			MetaPath: "./data",
			VolPath:  "./data",
			NumPages: 4,
		},
		Akumuli: AkumuliConfig{
			PageSize:             1 << 26, // AKU_MAX_PAGE_SIZE default, 64 MiB
			WindowSize:           time.Second,
			CompressionThreshold: 1000,
			MaxCacheSize:         128 << 20, // 128 MiB
			Durability:           "max",
			EnableHugeTLB:        false,
			CompressBlobs:        false,
			HistogramSize:        64,
			RunStripes:           16,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			TimeFormat: time.RFC3339,
		},
	}
}
