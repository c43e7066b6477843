// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the complete server configuration.
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Store      StoreConfig      `koanf:"store"`
	Realtime   RealtimeConfig   `koanf:"realtime"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_PORT: listen port (default: 4860)
//   - HTTP_TIMEOUT: read/write timeout for plain HTTP routes (default: 30s)
//   - WS_PATH: upgrade route (default: /ws)
//   - WS_HANDSHAKE_TIMEOUT: WebSocket upgrade timeout (default: 10s)
//   - ENVIRONMENT: development, staging or production (default: development)
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	WSPath            string        `koanf:"ws_path"`
	HandshakeTimeout  time.Duration `koanf:"handshake_timeout"`
	Environment       string        `koanf:"environment"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SecurityConfig holds token and HTTP hardening settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies HS256 bearer tokens. At least 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL is the lifetime of tokens minted by tokengen.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// Issuer is written to and required on tokens when non-empty.
	Issuer string `koanf:"issuer"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// CORSOrigins doubles as the WebSocket origin allow list. "*" allows all.
	CORSOrigins []string `koanf:"cors_origins"`
}

// StoreConfig mirrors store.Config.
type StoreConfig struct {
	Path                    string        `koanf:"path"`
	InMemory                bool          `koanf:"in_memory"`
	SyncWrites              bool          `koanf:"sync_writes"`
	RetryInterval           time.Duration `koanf:"retry_interval"`
	MaxRetries              int           `koanf:"max_retries"`
	RetryBackoff            time.Duration `koanf:"retry_backoff"`
	GCInterval              time.Duration `koanf:"gc_interval"`
	GCRatio                 float64       `koanf:"gc_ratio"`
	CompactThreshold        int           `koanf:"compact_threshold"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	Compression             bool          `koanf:"compression"`
}

// RealtimeConfig tunes connections, rooms and project actors.
type RealtimeConfig struct {
	MaxPendingFrames int           `koanf:"max_pending_frames"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	SendBuffer       int           `koanf:"send_buffer"`
	FrameRate        float64       `koanf:"frame_rate"`
	FrameBurst       int           `koanf:"frame_burst"`
	AuthTimeout      time.Duration `koanf:"auth_timeout"`
	PingInterval     time.Duration `koanf:"ping_interval"`
	PongTimeout      time.Duration `koanf:"pong_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	DocumentIdleTTL  time.Duration `koanf:"document_idle_ttl"`
	ActorIdleTTL     time.Duration `koanf:"actor_idle_ttl"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig holds suture tree parameters.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration from built-in defaults, an optional YAML file
// and environment variables, in that order of precedence.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
