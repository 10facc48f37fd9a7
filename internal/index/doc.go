// Package index persists document records in SQLite and is the single
// source of truth for draft and confirmed state.
//
// A record is keyed by its absolute path. The pipeline upserts drafts,
// operators edit them, and ConfirmAndRelocate performs the one transition
// to confirmed together with the path rewrite. Official listings
// (ListByDevice, the search index, the wiki) only ever see confirmed rows.
//
// Schema changes bump schemaVersion in schema.go and the embedded
// schema.sql.
package index
