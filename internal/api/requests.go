// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

// UpgradeRequest is the query of the WebSocket upgrade route.
type UpgradeRequest struct {
	DocumentID string `query:"documentId" validate:"required,documentid"`
}

// ProjectRequest names a project by its path parameters.
type ProjectRequest struct {
	Owner string `url:"owner" validate:"required,slug"`
	Slug  string `url:"slug" validate:"required,slug"`
}

// Key returns the project actor key.
func (p ProjectRequest) Key() string {
	return p.Owner + ":" + p.Slug
}
