// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package logging provides the zerolog-based global logger used across Inkwell.

Initialize once from configuration, then log with structured fields:

	logging.Init(logging.Config{Level: "info", Format: "json"})
	logging.Info().Str("document", doc).Int("peers", n).Msg("Room started")

Always terminate a chain with Msg or Send; an unterminated chain logs nothing.

Context Logging:

HTTP requests carry a request ID and every WebSocket connection carries a
correlation ID for its lifetime. Ctx picks both up:

	logging.Ctx(ctx).Warn().Err(err).Msg("Frame rejected")

Security Events:

SecurityLogger records handshake outcomes with masked usernames. Tokens are
never written to the log.

slog Bridge:

SlogHandler adapts zerolog to log/slog for libraries that require it, such
as sutureslog in the supervisor tree.

Tests silence output with:

	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
*/
package logging
