// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	jwt           *auth.JWTManager
}

// NewRouter creates a router. jwt guards the authenticated API routes.
func NewRouter(handler *Handler, chiMiddleware *ChiMiddleware, jwt *auth.JWTManager) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: chiMiddleware,
		jwt:           jwt,
	}
}

// Setup builds the route tree.
//
// Route Groups:
//   - /api/v1/health/*: public probes
//   - WSPath (default /ws): WebSocket upgrade, rate limited per IP
//   - /api/v1/projects/{owner}/{slug}/stats: owner-only live stats
//   - /api/v1/store/stats: update store counters, authenticated
//   - /metrics: Prometheus exposition
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.With(
		router.chiMiddleware.RateLimit(),
		middleware.PrometheusMetrics,
	).Get(h.config.Server.WSPath, h.WebSocket)

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(auth.RequireAuth(router.jwt))
		r.Get("/api/v1/projects/{owner}/{slug}/stats", h.ProjectStats)
		r.Get("/api/v1/store/stats", h.StoreStats)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
