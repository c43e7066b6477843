// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package services

import (
	"context"
)

// ContextRunner is satisfied by *websocket.Registry.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RegistryService runs the actor registry's idle sweep. When it stops, the
// registry closes every connection with 1001.
type RegistryService struct {
	registry ContextRunner
	name     string
}

// NewRegistryService wraps registry.
func NewRegistryService(registry ContextRunner) *RegistryService {
	return &RegistryService{
		registry: registry,
		name:     "actor-registry",
	}
}

// Serve implements suture.Service.
func (r *RegistryService) Serve(ctx context.Context) error {
	return r.registry.RunWithContext(ctx)
}

// String names the service in supervisor events.
func (r *RegistryService) String() string {
	return r.name
}
