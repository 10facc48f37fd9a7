// Package daemon coordinates the long-running meddoc process.
//
// It wires the watcher, the ingest pipeline, the notification relay and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances over the same data directory. Ingestion logic lives in
// internal/ingest; the daemon focuses on startup, shutdown, and exposing the
// operator surface.
package daemon
