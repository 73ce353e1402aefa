// Package logging provides subsystem-tagged structured logging for the
// authorization engine, built on the standard library's log/slog.
//
// Every log call names the subsystem it originates from (for example
// "Engine", "Reaper", "BrowserHandle"), which makes it possible to follow
// a single authorization session across components:
//
//	logging.Info("Engine", "admitted session %s for profile %s", id, profileID)
//	logging.Error("Reaper", err, "failed to archive session %s", id)
//
// Call Init once at startup to set the level and output; the helpers are
// safe to use from any goroutine.
package logging
