// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package api provides the HTTP surface of the Inkwell server.

The only realtime entry point is the WebSocket upgrade route. Everything
else is operational: health probes, owner-scoped project stats and the
Prometheus endpoint.

Endpoints:

	GET  /ws?documentId=owner:slug:doc    upgrade (400, 403, 426 on failure)
	GET  /api/v1/health                   status and live counts
	GET  /api/v1/health/live              liveness
	GET  /api/v1/health/ready             readiness (503 if the store is down)
	GET  /api/v1/projects/{owner}/{slug}/stats   bearer token, owner only
	GET  /api/v1/store/stats              bearer token
	GET  /metrics                         Prometheus

Responses use the models.APIResponse envelope.

Middleware order: request ID, real IP, recoverer and CORS globally, then
per-group rate limiting, security headers, metrics and authentication.
*/
package api
