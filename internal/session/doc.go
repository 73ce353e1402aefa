// Package session defines the authorization session record, its state
// machine vocabulary, and the registry that enforces single-flight
// admission per profile.
//
// All state transitions flow through Registry.Transition, an atomic
// compare-and-set. That gives the engine and the lease reaper a single
// arbitration point: whichever caller transitions first wins, and the
// loser observes a StateConflictError carrying the state it lost to.
package session
