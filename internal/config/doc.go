// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package config loads server configuration with koanf.

# Configuration Sources

Sources are layered, later ones winning:
  - built-in defaults (defaultConfig)
  - an optional YAML file: $CONFIG_PATH, config.yaml, /etc/inkwell/config.yaml
  - environment variables listed in envMappings

# Sections

  - server: listen address, timeouts, WebSocket path
  - security: JWT secret, token TTL, rate limits, CORS and WebSocket origins
  - store: BadgerDB update log, retry loop, compaction, circuit breaker
  - realtime: pending queue, frame limits, keepalive, idle eviction
  - logging: zerolog level and format
  - supervisor: suture failure handling

# Example

	server:
	  port: 4860
	security:
	  jwt_secret: "change-me-to-at-least-32-characters!!"
	  cors_origins: ["https://app.example.com"]
	store:
	  path: /var/lib/inkwell
	  compact_threshold: 1000

The same settings as environment variables:

	HTTP_PORT=4860
	JWT_SECRET=change-me-to-at-least-32-characters!!
	CORS_ORIGINS=https://app.example.com
	STORE_PATH=/var/lib/inkwell
	STORE_COMPACT_THRESHOLD=1000
*/
package config
