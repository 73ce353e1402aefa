package engine

import (
	"context"
	"time"

	"authflow/internal/session"
	"authflow/pkg/logging"
)

// Reaper terminates sessions whose lease has expired. It forces them
// to timed_out through the same check-and-set path the machines use,
// then cancels the session context; the owning machine observes the
// force at its next transition, unwinds, and performs the resource
// release itself. The reaper never touches browser or profile
// resources directly.
type Reaper struct {
	registry *session.Registry
	interval time.Duration

	// now is replaceable for tests.
	now func() time.Time
}

// NewReaper creates a reaper over the engine's registry.
func NewReaper(registry *session.Registry, interval time.Duration) *Reaper {
	return &Reaper{
		registry: registry,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps at the configured interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logging.Info("Reaper", "lease reaper running, sweeping every %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep forces every lease-expired session to timed_out. A machine
// that reaches its own terminal state mid-force simply wins the race;
// the reaper backs off as soon as it observes a terminal state.
func (r *Reaper) Sweep() {
	for _, s := range r.registry.Expired(r.now()) {
		r.force(s)
	}
}

func (r *Reaper) force(s *session.Session) {
	for {
		cur := s.State()
		if cur.Terminal() {
			return
		}
		err := r.registry.TransitionWithDetail(s.ID, cur, session.StateTimedOut, "session lease expired")
		if err == nil {
			s.Cancel()
			logging.Warn("Reaper", "session %s forced to %s from %s", s.ID, session.StateTimedOut, cur)
			return
		}
		if !session.IsStateConflict(err) {
			logging.Warn("Reaper", "session %s force failed: %v", s.ID, err)
			return
		}
		// Lost the race to the machine; re-read and retry unless it
		// reached a terminal state on its own.
	}
}
