package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load loads configuration from file, falling back to defaults plus
// AKUMULI_-prefixed environment overrides when no file is found.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/akumuli")
	}

	setDefaults(v)

	v.SetEnvPrefix("AKUMULI")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values, mirroring DefaultConfig.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("storage.name", d.Storage.Name)
	v.SetDefault("storage.meta_path", d.Storage.MetaPath)
	v.SetDefault("storage.vol_path", d.Storage.VolPath)
	v.SetDefault("storage.num_pages", d.Storage.NumPages)

	v.SetDefault("akumuli.page_size", d.Akumuli.PageSize)
	v.SetDefault("akumuli.window_size", d.Akumuli.WindowSize)
	v.SetDefault("akumuli.compression_threshold", d.Akumuli.CompressionThreshold)
	v.SetDefault("akumuli.max_cache_size", d.Akumuli.MaxCacheSize)
	v.SetDefault("akumuli.durability", d.Akumuli.Durability)
	v.SetDefault("akumuli.enable_huge_tlb", d.Akumuli.EnableHugeTLB)
	v.SetDefault("akumuli.compress_blobs", d.Akumuli.CompressBlobs)
	v.SetDefault("akumuli.histogram_size", d.Akumuli.HistogramSize)
	v.SetDefault("akumuli.run_stripes", d.Akumuli.RunStripes)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
	v.SetDefault("logging.time_format", d.Logging.TimeFormat)
}

// parseConfig parses viper config into a Config struct.
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config.
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}
