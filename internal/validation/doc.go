// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package validation wraps a shared go-playground/validator instance with the
// rules HTTP handlers need for document identifiers and project slugs.
//
//	type upgradeRequest struct {
//	    DocumentID string `query:"documentId" validate:"required,documentid"`
//	}
//
// Field names in errors come from the query, json or url struct tag.
package validation
