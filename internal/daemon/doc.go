// Package daemon coordinates the long-running timelapse process.
//
// It wires configuration, the history store, the render pipeline, the capture
// loop and the dashboard into a single lifecycle with flock-based locking to
// prevent multiple instances writing the same frame store.
//
// Keep orchestration logic here: capture and rendering live in their own
// packages while the daemon focuses on startup, shutdown, and status.
package daemon
