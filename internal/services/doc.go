// Package services defines shared utilities consumed by the ingestion
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp record IDs, file paths, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can branch on
//     failure class with errors.Is.
package services
