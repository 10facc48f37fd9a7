// Package config loads, normalizes, and validates meddoc configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEDDOC_API_KEY. The Config type centralizes every knob the daemon and CLI
// need so the watched root, index location, and classifier credentials are
// discovered in one pass.
package config
