// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package middleware provides the infrastructure middleware shared by every
HTTP route.

Key Components:

  - RequestID: X-Request-ID propagation plus request and correlation IDs and
    a request-scoped zerolog logger in the context (see logging.Ctx)
  - PrometheusMetrics: request counter and latency histogram labelled by chi
    route pattern

Both are plain func(http.Handler) http.Handler and are installed with chi's
r.Use. PrometheusMetrics wraps the writer with chi's WrapResponseWriter,
which keeps http.Hijacker so the WebSocket upgrade route can be measured.
*/
package middleware
