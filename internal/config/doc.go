// Package config defines the configuration surface of the authorization
// engine: concurrency bounds, bounded waits, retry ceilings, provider
// credentials, and per-application OAuth settings.
//
// Configuration is loaded from a single YAML file layered over built-in
// defaults (see defaults.go). Every timeout and attempt ceiling the
// state machine uses appears here as an explicit value; nothing is
// hardcoded in the flow itself, so tests can exercise timeout paths
// with short durations.
package config
