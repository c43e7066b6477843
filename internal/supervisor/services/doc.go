// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package services adapts Inkwell components to suture.Service.
//
// Each wrapper depends on a small interface instead of the component's
// package, so the supervisor imports neither store nor websocket:
//
//   - HTTPServerService: *http.Server (ListenAndServe / Shutdown)
//   - StoreLoopService: *store.Loop (Start / Stop)
//   - RegistryService: *websocket.Registry (RunWithContext)
package services
