package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authflow/internal/browser"
	"authflow/internal/config"
	"authflow/internal/gate"
	"authflow/internal/oauthx"
	"authflow/internal/profile"
	"authflow/internal/session"
	"authflow/internal/store"
	"authflow/pkg/logging"
)

// Credentials are the account secrets handed to the login step. They
// are never persisted.
type Credentials struct {
	Username string
	Password string
}

// Request asks for one authorization run.
type Request struct {
	ProfileID   string
	AccountID   string
	AppID       string
	Credentials Credentials
}

// Status is the externally visible view of a session, answered from
// the live registry while the session runs and from the archive after.
type Status struct {
	SessionID     string
	ProfileID     string
	AccountID     string
	AppID         string
	State         session.State
	FailureDetail string
	Attempts      map[string]int
	CreatedAt     time.Time
	Result        *session.TokenBundle
}

// Engine coordinates authorization runs: it admits sessions, holds
// them at the concurrency gate, and drives one state machine goroutine
// per admitted session.
type Engine struct {
	cfg       config.Config
	gate      *gate.Gate
	registry  *session.Registry
	archive   *store.Archive
	provider  profile.Provider
	connector browser.Connector
	strategy  *browser.Strategy
	exchanger oauthx.Exchanger

	wg sync.WaitGroup
}

// New wires an engine from its collaborators.
func New(cfg config.Config, archive *store.Archive, provider profile.Provider, connector browser.Connector, strategy *browser.Strategy, exchanger oauthx.Exchanger) *Engine {
	return &Engine{
		cfg:       cfg,
		gate:      gate.New(cfg.Engine.MaxConcurrentProfiles),
		registry:  session.NewRegistry(),
		archive:   archive,
		provider:  provider,
		connector: connector,
		strategy:  strategy,
		exchanger: exchanger,
	}
}

// Registry exposes the session registry for the lease reaper.
func (e *Engine) Registry() *session.Registry {
	return e.registry
}

// RequestAuthorization admits a session for the request and blocks
// until a concurrency slot is granted or the gate acquire timeout
// elapses. On success the authorization flow continues asynchronously
// and the returned session identifies it.
//
// Admission happens before the gate wait, so a second request for the
// same profile is rejected immediately rather than queued behind the
// first. A gate timeout terminates the session as gate_timeout and
// returns it alongside the error so callers can still query its
// record.
func (e *Engine) RequestAuthorization(ctx context.Context, req Request) (*session.Session, error) {
	app, ok := e.cfg.App(req.AppID)
	if !ok {
		return nil, fmt.Errorf("unknown app %q", req.AppID)
	}

	s, err := e.registry.Admit(req.ProfileID, req.AccountID, req.AppID, e.cfg.Engine.SessionLease.Std())
	if err != nil {
		return nil, err
	}

	logging.Info("Engine", "session %s admitted for profile %s (app %s)", s.ID, req.ProfileID, req.AppID)

	slot, err := e.gate.Acquire(ctx, e.cfg.Engine.GateAcquireTimeout.Std())
	if err != nil {
		e.terminateUnstarted(s, session.StateGateTimeout, err)
		return s, err
	}

	m := &machine{
		engine: e,
		s:      s,
		slot:   slot,
		app:    app,
		creds:  req.Credentials,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		m.run()
	}()

	return s, nil
}

// terminateUnstarted finishes a session that never got a slot: no
// profile, no browser, nothing to clean up beyond the record itself.
func (e *Engine) terminateUnstarted(s *session.Session, to session.State, cause error) {
	if err := e.registry.TransitionWithDetail(s.ID, session.StatePending, to, cause.Error()); err != nil {
		// A reaper force beat us; the forced state stands.
		logging.Warn("Engine", "session %s already terminated: %v", s.ID, err)
	}
	s.Cancel()
	e.archiveAndRemove(s)
}

func (e *Engine) archiveAndRemove(s *session.Session) {
	if err := e.archive.Save(s); err != nil {
		logging.Error("Engine", err, "failed to archive session %s", s.ID)
	}
	e.registry.Remove(s.ID)
}

// SessionStatus reports a session's state, consulting the archive for
// sessions that have already finished and been evicted.
func (e *Engine) SessionStatus(sessionID string) (*Status, error) {
	if s, err := e.registry.Get(sessionID); err == nil {
		v := s.View()
		return &Status{
			SessionID:     s.ID,
			ProfileID:     s.ProfileID,
			AccountID:     s.AccountID,
			AppID:         s.AppID,
			State:         v.State,
			FailureDetail: v.FailureDetail,
			Attempts:      v.Attempts,
			CreatedAt:     s.CreatedAt,
			Result:        v.Result,
		}, nil
	}

	rec, err := e.archive.Load(sessionID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, &session.NotFoundError{SessionID: sessionID}
		}
		return nil, err
	}
	return &Status{
		SessionID:     rec.ID,
		ProfileID:     rec.ProfileID,
		AccountID:     rec.AccountID,
		AppID:         rec.AppID,
		State:         rec.State,
		FailureDetail: rec.FailureDetail,
		Attempts:      rec.Attempts,
		CreatedAt:     rec.CreatedAt,
		Result:        rec.Result,
	}, nil
}

// Shutdown cancels every in-flight session and waits for their
// machines to finish cleanup, up to ctx's deadline.
func (e *Engine) Shutdown(ctx context.Context) error {
	for _, s := range e.registry.NonTerminal() {
		s.Cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Engine", "all sessions drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown incomplete: %w", ctx.Err())
	}
}
