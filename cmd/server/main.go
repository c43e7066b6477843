// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/inkwell/internal/api"
	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/store"
	"github.com/tomtom215/inkwell/internal/supervisor"
	"github.com/tomtom215/inkwell/internal/supervisor/services"
	"github.com/tomtom215/inkwell/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("version", api.Version).
		Str("addr", cfg.Server.Addr()).
		Str("ws_path", cfg.Server.WSPath).
		Str("environment", cfg.Server.Environment).
		Bool("store_in_memory", cfg.Store.InMemory).
		Msg("Starting Inkwell")

	st, err := store.Open(storeConfig(cfg))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open update store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing update store")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	registry := websocket.NewRegistry(realtimeConfig(cfg), st, auth.NewVerifier(jwtManager, nil))

	handler := api.NewHandler(cfg, st, registry)
	chiMiddleware := api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security))
	router := api.NewRouter(handler, chiMiddleware, jwtManager)
	server := newHTTPServer(cfg, router.Setup())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewStoreLoopService(store.NewRetryLoop(st)))
	tree.AddDataService(services.NewStoreLoopService(store.NewGCLoop(st)))
	tree.AddRealtimeService(services.NewRegistryService(registry))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := waitForTree(ctx, tree.ServeBackground(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// Deferred fragments get one last attempt before the store closes.
	res := st.FlushDeferred(context.Background(), true)
	logging.Info().Interface("flush", res).Msg("Inkwell stopped")
}
