// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/inkwell/config.yaml",
	"/etc/inkwell/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              4860,
			Timeout:           30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			WSPath:            "/ws",
			HandshakeTimeout:  10 * time.Second,
			Environment:       "development",
			ReadHeaderTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			TokenTTL:        24 * time.Hour,
			Issuer:          "inkwell",
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Store: StoreConfig{
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
			Compression:             true,
		},
		Realtime: RealtimeConfig{
			MaxPendingFrames: 64,
			MaxMessageSize:   8 << 20,
			SendBuffer:       256,
			FrameRate:        200,
			FrameBurst:       400,
			AuthTimeout:      10 * time.Second,
			PingInterval:     30 * time.Second,
			PongTimeout:      60 * time.Second,
			WriteTimeout:     10 * time.Second,
			DocumentIdleTTL:  0,
			ActorIdleTTL:     0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated environment values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Server
	"http_host":                "server.host",
	"http_port":                "server.port",
	"http_timeout":             "server.timeout",
	"http_shutdown_timeout":    "server.shutdown_timeout",
	"http_read_header_timeout": "server.read_header_timeout",
	"ws_path":                  "server.ws_path",
	"ws_handshake_timeout":     "server.handshake_timeout",
	"environment":              "server.environment",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"jwt_issuer":          "security.issuer",
	"token_ttl":           "security.token_ttl",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Store
	"store_path":                      "store.path",
	"store_in_memory":                 "store.in_memory",
	"store_sync_writes":               "store.sync_writes",
	"store_retry_interval":            "store.retry_interval",
	"store_max_retries":               "store.max_retries",
	"store_retry_backoff":             "store.retry_backoff",
	"store_gc_interval":               "store.gc_interval",
	"store_gc_ratio":                  "store.gc_ratio",
	"store_compact_threshold":         "store.compact_threshold",
	"store_breaker_failure_threshold": "store.breaker_failure_threshold",
	"store_breaker_timeout":           "store.breaker_timeout",
	"store_compression":               "store.compression",

	// Realtime
	"realtime_max_pending_frames": "realtime.max_pending_frames",
	"realtime_max_message_size":   "realtime.max_message_size",
	"realtime_send_buffer":        "realtime.send_buffer",
	"realtime_frame_rate":         "realtime.frame_rate",
	"realtime_frame_burst":        "realtime.frame_burst",
	"realtime_auth_timeout":       "realtime.auth_timeout",
	"realtime_ping_interval":      "realtime.ping_interval",
	"realtime_pong_timeout":       "realtime.pong_timeout",
	"realtime_write_timeout":      "realtime.write_timeout",
	"document_idle_ttl":           "realtime.document_idle_ttl",
	"actor_idle_ttl":              "realtime.actor_idle_ttl",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Returning "" skips the variable.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - JWT_SECRET -> security.jwt_secret
//   - STORE_PATH -> store.path
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
