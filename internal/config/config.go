// Package config provides configuration management for the tabular engine.
// A process-wide Config controls parallelism thresholds and operation
// tracing; values load from defaults, a YAML/JSON file, or PANELKIT_*
// environment variables, in that order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for engine operations
type Config struct {
	// ParallelThreshold is the minimum row count that triggers internal
	// parallelism. Results are identical either way.
	ParallelThreshold int `json:"parallel_threshold" yaml:"parallel_threshold"`
	// WorkerPoolSize is the number of worker goroutines (0 = NumCPU).
	WorkerPoolSize int `json:"worker_pool_size" yaml:"worker_pool_size"`
	// ChunkSize is the row-chunk size for chunked execution (0 = auto).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
	// TraceOperations enables per-operation tracing.
	TraceOperations bool `json:"trace_operations" yaml:"trace_operations"`
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultParallelThreshold = 1000
)

func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		ParallelThreshold: DefaultParallelThreshold,
		WorkerPoolSize:    0, // Auto-detect
		ChunkSize:         0, // Auto-calculate
		TraceOperations:   false,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.ParallelThreshold <= 0 {
		return fmt.Errorf("ParallelThreshold must be positive, got %d", c.ParallelThreshold)
	}
	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WorkerPoolSize must be non-negative, got %d", c.WorkerPoolSize)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("ChunkSize must be non-negative, got %d", c.ChunkSize)
	}
	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()
	if c.ParallelThreshold == 0 {
		c.ParallelThreshold = defaults.ParallelThreshold
	}
	return c
}

// SetConfig sets the global configuration
func SetConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetConfig returns the current global configuration
func GetConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// Reset restores the global configuration to defaults
func Reset() {
	SetConfig(NewConfig())
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from PANELKIT_* environment variables,
// starting from defaults.
func LoadFromEnv() Config {
	config := NewConfig()

	if val := os.Getenv("PANELKIT_PARALLEL_THRESHOLD"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.ParallelThreshold = parsed
		}
	}
	if val := os.Getenv("PANELKIT_WORKER_POOL_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.WorkerPoolSize = parsed
		}
	}
	if val := os.Getenv("PANELKIT_CHUNK_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.ChunkSize = parsed
		}
	}
	if val := os.Getenv("PANELKIT_TRACE_OPERATIONS"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.TraceOperations = parsed
		}
	}

	return config
}
