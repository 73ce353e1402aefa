// Package engine orchestrates third-party authorization runs against
// remote browser profiles.
//
// A run is admitted as a session, held at a bounded concurrency gate,
// and then driven by a per-session state machine: start the profile,
// attach to its browser, navigate to the authorization URL, classify
// and act on each page (login, consent, callback), and redeem the
// authorization code for tokens. Every transition is a registry
// check-and-set, which is also how the lease reaper terminates runs
// that outlive their lease without racing the owning machine on
// resource release.
package engine
