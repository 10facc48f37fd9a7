// Package taxonomy owns the medical device category catalog, the document
// type vocabulary, and the correction rules that map classifier output onto
// valid (category, group) pairs.
//
// The catalog is loaded once from YAML (the built-in copy by default) and is
// read-only afterwards. Validator.Resolve is total: any input yields a pair
// that exists in the catalog.
package taxonomy
