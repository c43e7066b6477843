// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Command server runs the Inkwell collaborative document server.
//
// Startup order:
//
//  1. Configuration: defaults, optional YAML file, environment (koanf v2)
//  2. Logging: zerolog, with a slog bridge for the supervisor
//  3. Update store: BadgerDB append-only fragment log
//  4. Authentication: HS256 JWT manager and handshake verifier
//  5. Actor registry: project actors, document rooms, connections
//  6. HTTP router: chi with CORS, rate limiting and Prometheus metrics
//  7. Supervisor tree: store loops, registry and HTTP server under suture
//
// # Configuration
//
// Common environment variables:
//
//	JWT_SECRET         32+ character token signing secret (required)
//	HTTP_PORT          listen port (default 4860)
//	WS_PATH            upgrade route (default /ws)
//	STORE_PATH         BadgerDB directory
//	CORS_ORIGINS       comma-separated allowed origins, "*" for any
//	LOG_LEVEL          trace, debug, info, warn, error
//
// See internal/config for the full list.
//
// # Signals
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server stops
// accepting requests, the registry closes every socket with 1001, deferred
// fragments get a final flush and the store is closed.
//
// # Example
//
//	export JWT_SECRET=$(openssl rand -base64 48)
//	export CORS_ORIGINS=https://editor.example.com
//	./inkwell
package main
