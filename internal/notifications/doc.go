// Package notifications delivers approval requests and pipeline outcomes to
// the operator.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Per-event toggles
// in [notifications] suppress drafts, confirmations or errors individually.
package notifications
