package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Config holds buffer pool configuration
type Config struct {
	// Buffer Pool Configuration
	BufferPoolSize uint32 `json:"buffer_pool_size"` // Number of frames in the pool
	ReplacerPolicy string `json:"replacer_policy"`  // Replacement policy (lru-k, lru)
	ReplacerK      uint32 `json:"replacer_k"`       // History window for LRU-K

	// Disk Configuration
	DataFile    string `json:"data_file"`   // Page file path
	Compression string `json:"compression"` // Page compression (none, lz4, snappy)
	FlushWorkers int   `json:"flush_workers"` // Concurrent writers in FlushAllPages

	// Observability
	EnableMetrics bool   `json:"enable_metrics"` // Whether to collect performance metrics
	LogLevel      string `json:"log_level"`      // Log level (debug, info, warn, error)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BufferPoolSize: 100,
		ReplacerPolicy: PolicyLRUK,
		ReplacerK:      DefaultReplacerK,
		DataFile:       "./data/pages.db",
		Compression:    "none",
		FlushWorkers:   4,
		EnableMetrics:  true,
		LogLevel:       "info",
	}
}

// LoadConfigFromFile loads configuration from a JSON file.
// Fields missing from the file keep their default values.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFromEnv loads configuration from LRUKPOOL_* environment variables.
// Unset or unparsable variables fall back to default values.
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if val := os.Getenv("LRUKPOOL_BUFFER_POOL_SIZE"); val != "" {
		if size, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.BufferPoolSize = uint32(size)
		}
	}

	if val := os.Getenv("LRUKPOOL_REPLACER_POLICY"); val != "" {
		config.ReplacerPolicy = val
	}

	if val := os.Getenv("LRUKPOOL_REPLACER_K"); val != "" {
		if k, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.ReplacerK = uint32(k)
		}
	}

	if val := os.Getenv("LRUKPOOL_DATA_FILE"); val != "" {
		config.DataFile = val
	}

	if val := os.Getenv("LRUKPOOL_COMPRESSION"); val != "" {
		config.Compression = val
	}

	if val := os.Getenv("LRUKPOOL_FLUSH_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil {
			config.FlushWorkers = workers
		}
	}

	if val := os.Getenv("LRUKPOOL_ENABLE_METRICS"); val != "" {
		config.EnableMetrics = val == "true" || val == "1"
	}

	if val := os.Getenv("LRUKPOOL_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BufferPoolSize == 0 {
		return fmt.Errorf("buffer pool size must be greater than 0")
	}

	switch c.ReplacerPolicy {
	case PolicyLRUK, PolicyLRU:
	default:
		return fmt.Errorf("invalid replacer policy: %s (must be lru-k or lru)", c.ReplacerPolicy)
	}

	if c.ReplacerK == 0 {
		return fmt.Errorf("replacer k must be greater than 0")
	}

	if c.DataFile == "" {
		return fmt.Errorf("data file cannot be empty")
	}

	if _, err := ParseCompressionType(c.Compression); err != nil {
		return err
	}

	if c.FlushWorkers <= 0 {
		return fmt.Errorf("flush workers must be greater than 0")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// CompressionType returns the configured page compression.
// Unknown names map to CompressionNone; Validate reports them.
func (c *Config) CompressionType() CompressionType {
	ct, err := ParseCompressionType(c.Compression)
	if err != nil {
		return CompressionNone
	}
	return ct
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
