// Package main hosts the meddoc CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon, talks to a running daemon over its
// HTTP API for approvals and edits, and reads the index directly for listings
// and maintenance. When the daemon is not running, approve and edit fall back
// to an in-process pipeline so the same move-then-persist rules apply.
package main
