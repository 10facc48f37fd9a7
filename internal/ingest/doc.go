// Package ingest turns settled filesystem events into draft records and
// carries approved drafts into the device folder layout.
//
// A single Pipeline consumes the watcher channel sequentially: hash, classify
// (or reuse a hand placement or cached result), correct the taxonomy, build
// the device slug, upsert the draft and publish DraftCreated on the Bus.
// Confirm moves the file first and persists second, moving it back if the
// store refuses, so a confirmed record always points at a real file.
package ingest
