package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/config"
	"authflow/internal/session"
)

func TestSweepForcesExpiredSessions(t *testing.T) {
	r := session.NewRegistry()
	stale, err := r.Admit("profile-1", "acct-1", "svc", time.Minute)
	require.NoError(t, err)
	require.NoError(t, r.Transition(stale.ID, session.StatePending, session.StateConsentRequired))
	fresh, err := r.Admit("profile-2", "acct-2", "svc", time.Hour)
	require.NoError(t, err)

	reaper := NewReaper(r, time.Second)
	reaper.now = func() time.Time { return time.Now().Add(30 * time.Minute) }
	reaper.Sweep()

	assert.Equal(t, session.StateTimedOut, stale.State())
	assert.Equal(t, "session lease expired", stale.View().FailureDetail)
	assert.Error(t, stale.Context().Err(), "force must cancel the session context")

	assert.Equal(t, session.StatePending, fresh.State())
	assert.NoError(t, fresh.Context().Err())
}

func TestSweepSkipsTerminalSessions(t *testing.T) {
	r := session.NewRegistry()
	s, err := r.Admit("profile-1", "acct-1", "svc", time.Minute)
	require.NoError(t, err)
	require.NoError(t, r.Transition(s.ID, session.StatePending, session.StateCompleted))

	reaper := NewReaper(r, time.Second)
	reaper.now = func() time.Time { return time.Now().Add(30 * time.Minute) }
	reaper.Sweep()

	assert.Equal(t, session.StateCompleted, s.State())
	assert.NoError(t, s.Context().Err())
}

func TestSessionStatusDuringForce(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.SessionLease = config.Duration(50 * time.Millisecond)
	cfg.Browser.CallbackWait = config.Duration(10 * time.Second)
	h := newHarness(t, cfg)

	h.handle.onNavigate = func(fh *fakeHandle, target string) {
		fh.show(selApprove)
	}

	s, err := h.engine.RequestAuthorization(context.Background(), request())
	require.NoError(t, err)

	// Poll status from another goroutine the whole time the machine
	// and the reaper are writing to the session.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if st, err := h.engine.SessionStatus(s.ID); err == nil {
				_ = st.FailureDetail
				_ = st.Attempts
				_ = st.Result
			}
		}
	}()

	reaper := NewReaper(h.engine.Registry(), 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Run(ctx)

	status := waitTerminal(t, h.engine, s.ID)
	close(stop)
	<-done

	assert.Equal(t, session.StateTimedOut, status.State)
	assert.Equal(t, "session lease expired", status.FailureDetail)
}

func TestReaperForceUnwindsMachine(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.SessionLease = config.Duration(50 * time.Millisecond)
	cfg.Browser.CallbackWait = config.Duration(10 * time.Second)
	h := newHarness(t, cfg)

	// Park the machine waiting for a redirect that never comes.
	h.handle.onNavigate = func(fh *fakeHandle, target string) {
		fh.show(selApprove)
	}

	s, err := h.engine.RequestAuthorization(context.Background(), request())
	require.NoError(t, err)

	reaper := NewReaper(h.engine.Registry(), 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Run(ctx)

	status := waitTerminal(t, h.engine, s.ID)
	assert.Equal(t, session.StateTimedOut, status.State)
	assert.Equal(t, "session lease expired", status.FailureDetail)

	// The owning machine released everything exactly once.
	assert.Eventually(t, func() bool {
		return h.provider.stopCalls.Load() == 1 &&
			h.handle.closeCalls.Load() == 1 &&
			h.engine.gate.InUse() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
