package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"authflow/pkg/logging"
)

// Registry tracks every non-archived session and enforces the core
// admission invariant: at most one non-terminal session per profile.
//
// Admission and state transitions both run under the registry lock so
// the duplicate check, the profile index update, and the state write
// are a single atomic step with respect to each other.
type Registry struct {
	mu sync.Mutex

	// sessions holds active sessions by session ID.
	sessions map[string]*Session

	// byProfile maps a profile ID to its one non-terminal session.
	byProfile map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		byProfile: make(map[string]*Session),
	}
}

// Admit creates and registers a new pending session for the given
// profile. If the profile already has a non-terminal session the
// admission is rejected with a DuplicateSessionError naming it.
func (r *Registry) Admit(profileID, accountID, appID string, lease time.Duration) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byProfile[profileID]; ok {
		return nil, &DuplicateSessionError{
			ProfileID: profileID,
			SessionID: existing.ID,
		}
	}

	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:             uuid.New().String(),
		ProfileID:      profileID,
		AccountID:      accountID,
		AppID:          appID,
		CreatedAt:      now,
		LeaseExpiresAt: now.Add(lease),
		state:          StatePending,
		attempts:       make(map[string]int),
		ctx:            ctx,
		cancel:         cancel,
	}

	r.sessions[s.ID] = s
	r.byProfile[profileID] = s

	logging.Debug("SessionRegistry", "admitted session %s for profile %s (app %s)", s.ID, profileID, appID)
	return s, nil
}

// Get returns the session with the given ID, or a NotFoundError.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, &NotFoundError{SessionID: sessionID}
	}
	return s, nil
}

// Transition moves a session from an expected state to a new one. The
// check and the write are atomic: a concurrent caller that already
// moved the session causes a StateConflictError carrying the actual
// state, and the losing caller must re-read and react.
//
// Entering a terminal state frees the profile for new admissions.
func (r *Registry) Transition(sessionID string, from, to State) error {
	return r.transition(sessionID, from, to, nil)
}

// TransitionWithDetail is Transition plus a failure detail published
// under the same lock, so a status read never observes a failure state
// without its explanation. The detail is written only when the
// transition wins.
func (r *Registry) TransitionWithDetail(sessionID string, from, to State, detail string) error {
	return r.transition(sessionID, from, to, &detail)
}

func (r *Registry) transition(sessionID string, from, to State, detail *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return &NotFoundError{SessionID: sessionID}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != from {
		return &StateConflictError{
			SessionID: sessionID,
			Expected:  from,
			Actual:    s.state,
		}
	}
	s.state = to
	if detail != nil {
		s.failureDetail = *detail
	}

	if to.Terminal() {
		if r.byProfile[s.ProfileID] == s {
			delete(r.byProfile, s.ProfileID)
		}
	}

	logging.Debug("SessionRegistry", "session %s: %s -> %s", sessionID, from, to)
	return nil
}

// Remove drops an archived session from the registry. Callers archive
// the session to durable storage first; after removal only the archive
// can answer status queries for it.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	if r.byProfile[s.ProfileID] == s {
		delete(r.byProfile, s.ProfileID)
	}
}

// Expired returns the non-terminal sessions whose lease has passed.
// The reaper forces these to timed_out through the same Transition
// path the owning machines use.
func (r *Registry) Expired(now time.Time) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Session
	for _, s := range r.sessions {
		s.mu.Lock()
		terminal := s.state.Terminal()
		s.mu.Unlock()
		if !terminal && s.LeaseExpired(now) {
			out = append(out, s)
		}
	}
	return out
}

// NonTerminal returns every session that has not yet reached a
// terminal state. Shutdown uses it to request cancellation across the
// board.
func (r *Registry) NonTerminal() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Session
	for _, s := range r.byProfile {
		out = append(out, s)
	}
	return out
}

// Active returns the number of non-terminal sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byProfile)
}
