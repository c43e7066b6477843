// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package store

import (
	"time"
)

// Config holds update log store configuration.
//
// Values normally come from the store section of the server configuration
// (see internal/config); DefaultConfig documents the defaults.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	// Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in memory. Intended for tests.
	InMemory bool

	// SyncWrites forces fsync after every append. An append is only
	// considered durable when this is set.
	SyncWrites bool

	// RetryInterval is the time between retry loop iterations.
	RetryInterval time.Duration

	// MaxRetries is the number of retries for a deferred fragment before
	// it is dropped.
	MaxRetries int

	// RetryBackoff is the initial backoff between attempts for one fragment.
	RetryBackoff time.Duration

	// GCInterval is the time between value log GC runs.
	GCInterval time.Duration

	// GCRatio is the discard ratio passed to RunValueLogGC.
	GCRatio float64

	// CompactThreshold is the fragment count at which a document is
	// compacted into a single snapshot fragment. 0 disables compaction.
	CompactThreshold int

	// BreakerFailureThreshold is the number of consecutive write failures
	// that opens the circuit breaker.
	BreakerFailureThreshold uint32

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration

	// BadgerDB tuning
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int
	Compression      bool

	// CloseTimeout bounds how long Close waits for BadgerDB.
	CloseTimeout time.Duration
}

// DefaultConfig returns a Config that favours durability.
func DefaultConfig() Config {
	return Config{
		Path:                    "/data/inkwell",
		SyncWrites:              true,
		RetryInterval:           5 * time.Second,
		MaxRetries:              20,
		RetryBackoff:            time.Second,
		GCInterval:              10 * time.Minute,
		GCRatio:                 0.5,
		CompactThreshold:        500,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
		MemTableSize:            16 * 1024 * 1024,
		ValueLogFileSize:        64 * 1024 * 1024,
		NumCompactors:           2,
		Compression:             true,
		CloseTimeout:            30 * time.Second,
	}
}

// InMemoryConfig returns a Config suitable for tests.
func InMemoryConfig() Config {
	cfg := DefaultConfig()
	cfg.Path = ""
	cfg.InMemory = true
	cfg.SyncWrites = false
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxRetries = 3
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return &ConfigError{Field: "Path", Message: "store path is required"}
	}
	if c.RetryInterval <= 0 {
		return &ConfigError{Field: "RetryInterval", Message: "must be positive"}
	}
	if c.MaxRetries < 1 {
		return &ConfigError{Field: "MaxRetries", Message: "must be at least 1"}
	}
	if c.RetryBackoff <= 0 {
		return &ConfigError{Field: "RetryBackoff", Message: "must be positive"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	if c.CompactThreshold < 0 {
		return &ConfigError{Field: "CompactThreshold", Message: "must not be negative"}
	}
	if c.CompactThreshold == 1 {
		return &ConfigError{Field: "CompactThreshold", Message: "must be 0 (disabled) or at least 2"}
	}
	if c.BreakerFailureThreshold < 1 {
		return &ConfigError{Field: "BreakerFailureThreshold", Message: "must be at least 1"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "store config error: " + e.Field + ": " + e.Message
}
