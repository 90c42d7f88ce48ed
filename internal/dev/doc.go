// Package dev provides the development server and hot reload functionality.
//
// # Architecture
//
//   - Watcher: polls the watch roots and emits batches of changes once
//     the tree has been quiet for the debounce period
//   - Server: rebuilds the pack directory for each batch and serves it
//   - ReloadServer: notifies browsers of rebuilds via WebSocket
//
// Rebuilds run on a single goroutine. Batches that arrive during a rebuild
// are merged, so a burst of saves produces one rebuild and one reload.
//
// # Usage
//
//	srv := dev.NewServer(dev.ServerOptions{
//	    Config: cfg,
//	    Logger: log,
//	})
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	if err := srv.Start(ctx); err != nil {
//	    errors.Fprint(os.Stderr, err, false)
//	}
//
// # Hot Reload Protocol
//
// The browser connects to /_wasmpack/reload via WebSocket.
// Messages are JSON-encoded:
//
//	{"type": "reload", "build": "01J...", "level": "warn"} // full page reload
//	{"type": "error", "error": "...", "level": "warn"}    // shows error overlay
//	{"type": "clear", "level": "warn"}                    // clears error overlay
//
// The level is the lowest console level the client logs at.
package dev
