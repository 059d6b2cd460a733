// Package lsp manages the lifecycle of external language servers on a
// per-workspace basis.
//
// Given a workspace root, the package decides which language servers should
// run, requests their startup proactively, verifies managed servers
// periodically, and tears them down on shutdown or project close. It sits
// between project detection (filesystem inspection) and process control
// (spawning a server and speaking its protocol). The latter is deliberately
// outside this package: starting and stopping a real server is delegated to
// a host-provided Bridge, because only the host holds the session context a
// server needs.
//
// # Architecture
//
// The package is organized around these core components:
//
//   - Manager: top-level orchestrator owning the project and server registries
//   - Detector: resolves a directory to a project type and server list
//   - Broadcaster: bounded fan-out of lifecycle events to any number of listeners
//   - Lifecycle: thin holder of the optional Bridge handle for server shutdown
//   - StartServerCommand: point-to-point request/response used for startup,
//     since starting a server requires host-only context
//
// # Quick Start
//
// Create a manager, attach a host command channel, and detect a project:
//
//	commands := make(chan lsp.StartServerCommand, 64)
//	mgr := lsp.New(lsp.DefaultConfig(), lsp.WithCommandChannel(commands))
//
//	if err := mgr.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop(context.Background())
//
//	go lsp.ServeCommands(ctx, commands, bridge, logger)
//
//	if err := mgr.DetectProject(ctx, "/path/to/project"); err != nil {
//	    log.Fatal(err)
//	}
//
// Listeners subscribe to the broadcaster for lifecycle events:
//
//	sub := mgr.Subscribe()
//	defer sub.Cancel()
//	for ev := range sub.Events() {
//	    // react to ProjectDetected, ServerStartupRequested, ...
//	}
//
// Event delivery is lossy by design: each subscriber has a bounded buffer and
// events are dropped for subscribers that fall behind. Do not assume a
// subscriber sees every event.
package lsp
