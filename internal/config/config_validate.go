// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package config

import (
	"fmt"
	"strings"
)

// MinJWTSecretLength is the minimum accepted length of security.jwt_secret.
const MinJWTSecretLength = 32

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("WS_PATH must start with '/', got %q", c.Server.WSPath)
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	if c.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain '*' in production")
			}
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	s := c.Store
	if !s.InMemory && s.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	if s.RetryInterval <= 0 || s.RetryBackoff <= 0 {
		return fmt.Errorf("STORE_RETRY_INTERVAL and STORE_RETRY_BACKOFF must be positive")
	}
	if s.MaxRetries < 1 {
		return fmt.Errorf("STORE_MAX_RETRIES must be at least 1")
	}
	if s.GCRatio <= 0 || s.GCRatio >= 1 {
		return fmt.Errorf("STORE_GC_RATIO must be in (0, 1), got %v", s.GCRatio)
	}
	if s.CompactThreshold < 0 {
		return fmt.Errorf("STORE_COMPACT_THRESHOLD must not be negative")
	}
	return nil
}

func (c *Config) validateRealtime() error {
	r := c.Realtime
	if r.MaxPendingFrames < 1 {
		return fmt.Errorf("REALTIME_MAX_PENDING_FRAMES must be at least 1")
	}
	if r.MaxMessageSize < 1024 {
		return fmt.Errorf("REALTIME_MAX_MESSAGE_SIZE must be at least 1024 bytes")
	}
	if r.SendBuffer < 1 {
		return fmt.Errorf("REALTIME_SEND_BUFFER must be at least 1")
	}
	if r.FrameRate <= 0 || r.FrameBurst < 1 {
		return fmt.Errorf("REALTIME_FRAME_RATE and REALTIME_FRAME_BURST must be positive")
	}
	if r.AuthTimeout <= 0 || r.WriteTimeout <= 0 {
		return fmt.Errorf("REALTIME_AUTH_TIMEOUT and REALTIME_WRITE_TIMEOUT must be positive")
	}
	if r.PingInterval <= 0 || r.PongTimeout <= r.PingInterval {
		return fmt.Errorf("REALTIME_PONG_TIMEOUT (%v) must exceed REALTIME_PING_INTERVAL (%v)", r.PongTimeout, r.PingInterval)
	}
	if r.DocumentIdleTTL < 0 || r.ActorIdleTTL < 0 {
		return fmt.Errorf("idle TTLs must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be trace, debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
