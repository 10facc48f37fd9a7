// Package wiki renders the markdown device pages and taxonomy indexes that
// mirror the confirmed part of the index.
//
// Device pages are created once from a template and afterwards only the
// blocks between DOC_SECTION markers are replaced, so operator notes written
// outside the markers survive regeneration.
package wiki
