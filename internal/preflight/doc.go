// Package preflight provides readiness checks for the filesystem paths and
// external services meddoc depends on.
//
// The daemon runs RunAll at startup and logs every failed check; a failing
// watch root aborts startup because nothing can be ingested without it. The
// CLI "meddoc status" command renders the same results as a table.
package preflight
