// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package supervisor runs the long-lived services of the server under a
suture v4 tree.

	RootSupervisor ("inkwell")
	├── DataSupervisor ("data-layer")
	│   ├── StoreLoopService (store-retry-loop)
	│   └── StoreLoopService (store-gc-loop)
	├── RealtimeSupervisor ("realtime-layer")
	│   └── RegistryService (actor-registry)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with backoff; a failure in one layer does
not restart the others. Supervisor events are logged through sutureslog
on the slog bridge of the zerolog logger.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewStoreLoopService(store.NewRetryLoop(st)))
	tree.AddRealtimeService(services.NewRegistryService(registry))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Service wrappers live in the services subpackage.
*/
package supervisor
