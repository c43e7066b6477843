// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package models defines the JSON shapes of the HTTP API: the response
// envelope shared by every endpoint and the health payloads.
package models
