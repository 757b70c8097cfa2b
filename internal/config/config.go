// Package config loads and validates the standalone pyanalyze server's
// configuration: scheduler concurrency knobs, cache sizing, logging, and
// the server listen address.
package config

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Sentinel validation errors.
var (
	ErrInvalidPort           = errors.New("invalid server port")
	ErrInvalidWorkers        = errors.New("scheduler workers must be positive")
	ErrInvalidBufferSize     = errors.New("scheduler buffer size must be a valid size string")
	ErrInvalidSessionQueue   = errors.New("session queue depth must be positive")
	ErrInvalidCacheBackend   = errors.New("unknown cache backend")
	ErrInvalidCacheMaxSize   = errors.New("cache max size must be a valid size string")
	ErrInvalidLoggingLevel   = errors.New("unknown logging level")
	ErrInvalidLoggingFormat  = errors.New("unknown logging format")
)

const maxPort = 65535

// Config is the top-level configuration struct for the pyanalyze server.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
}

// SchedulerConfig holds the analyzer facade's session tuning knobs.
type SchedulerConfig struct {
	// Workers bounds a session's concurrent worker pool. Zero means
	// session.DefaultMaxWorkers() (one per logical CPU).
	Workers int `mapstructure:"workers"`

	// BufferSize is a human-readable size ("64MB"). It is parsed and
	// validated here; the analyzer facade does not read it and sets no
	// bound on buffered editor text.
	BufferSize string `mapstructure:"buffer_size"`

	// SessionQueueDepth is validated here; the analyzer facade does not
	// read it and always holds at most one "next" session behind the
	// currently running one.
	SessionQueueDepth int `mapstructure:"session_queue_depth"`
}

// CacheConfig configures the reference CacheService (internal/memcache).
type CacheConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "disk".
	MaxSize string `mapstructure:"max_size"`
	TTL     string `mapstructure:"ttl"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggingConfig configures internal/obslog.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text".
}

// ServerConfig configures the `pyanalyze serve` listen address and
// optional pprof endpoint.
type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	PprofPort  int    `mapstructure:"pprof_port"` // 0 disables pprof.
	MetricsURL string `mapstructure:"metrics_url"`
}

// BufferSizeBytes parses SchedulerConfig.BufferSize via go-humanize.
// Empty means no limit (0).
func (s SchedulerConfig) BufferSizeBytes() (uint64, error) {
	if s.BufferSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(s.BufferSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidBufferSize, s.BufferSize, err)
	}

	return n, nil
}

// MaxSizeBytes parses CacheConfig.MaxSize via go-humanize.
func (c CacheConfig) MaxSizeBytes() (uint64, error) {
	if c.MaxSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidCacheMaxSize, c.MaxSize, err)
	}

	return n, nil
}

var validCacheBackends = map[string]bool{"memory": true, "disk": true}

var validLoggingLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validLoggingFormats = map[string]bool{"json": true, "text": true}

// Validate checks the configuration for internally inconsistent values.
// Zero values are treated as "use the default" and never fail validation;
// only explicitly-set-but-invalid values do.
func (c *Config) Validate() error {
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Scheduler.Workers)
	}

	if _, err := c.Scheduler.BufferSizeBytes(); err != nil {
		return err
	}

	if c.Scheduler.SessionQueueDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSessionQueue, c.Scheduler.SessionQueueDepth)
	}

	if c.Cache.Backend != "" && !validCacheBackends[c.Cache.Backend] {
		return fmt.Errorf("%w: %q", ErrInvalidCacheBackend, c.Cache.Backend)
	}

	if _, err := c.Cache.MaxSizeBytes(); err != nil {
		return err
	}

	if c.Logging.Level != "" && !validLoggingLevels[c.Logging.Level] {
		return fmt.Errorf("%w: %q", ErrInvalidLoggingLevel, c.Logging.Level)
	}

	if c.Logging.Format != "" && !validLoggingFormats[c.Logging.Format] {
		return fmt.Errorf("%w: %q", ErrInvalidLoggingFormat, c.Logging.Format)
	}

	if c.Server.Port != 0 && (c.Server.Port < 0 || c.Server.Port > maxPort) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	return nil
}
