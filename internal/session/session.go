package session

import (
	"context"
	"sync"
	"time"
)

// TokenBundle is the opaque result of a successful authorization. The
// engine passes it through without inspecting anything beyond presence.
type TokenBundle struct {
	AccessToken  string    `yaml:"accessToken"`
	RefreshToken string    `yaml:"refreshToken,omitempty"`
	TokenSecret  string    `yaml:"tokenSecret,omitempty"`
	Scopes       []string  `yaml:"scopes,omitempty"`
	IssuedAt     time.Time `yaml:"issuedAt"`
}

// Snapshot is a diagnostic page capture taken when the flow encounters
// something it cannot classify or act on.
type Snapshot struct {
	URL        string
	HTML       string
	State      State
	CapturedAt time.Time
}

// View is a point-in-time copy of a session's mutable fields, safe to
// read after the lock is dropped. Status queries and archiving work
// from views; they never touch the live fields.
type View struct {
	State         State
	FailureDetail string
	LastPage      string
	Attempts      map[string]int
	Result        *TokenBundle
	Snapshots     []Snapshot
}

// Session is one authorization attempt for one account against one
// application config, tracked as a state machine.
//
// The identity fields are immutable after Admit. Everything else is
// guarded by mu: the owning machine, the reaper, and status queries
// all touch these fields from their own goroutines.
type Session struct {
	ID        string
	ProfileID string
	AccountID string
	AppID     string

	CreatedAt      time.Time
	LeaseExpiresAt time.Time

	mu            sync.Mutex
	state         State
	attempts      map[string]int
	result        *TokenBundle
	failureDetail string
	lastPage      string
	snapshots     []Snapshot

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup struct {
		once sync.Once
		fn   func()
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns a consistent copy of the session's mutable fields. The
// attempts map and snapshot slice are copied so the caller can hold
// the view while the machine keeps writing.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:         s.state,
		FailureDetail: s.failureDetail,
		LastPage:      s.lastPage,
		Result:        s.result,
	}
	if len(s.attempts) > 0 {
		v.Attempts = make(map[string]int, len(s.attempts))
		for step, n := range s.attempts {
			v.Attempts[step] = n
		}
	}
	if len(s.snapshots) > 0 {
		v.Snapshots = make([]Snapshot, len(s.snapshots))
		copy(v.Snapshots, s.snapshots)
	}
	return v
}

// Context returns the session's cancellation context. Every suspension
// point in the owning machine observes it; cancellation takes effect at
// the next such point rather than interrupting an in-flight browser
// call.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Cancel requests cooperative cancellation of the owning machine.
func (s *Session) Cancel() {
	s.cancel()
}

// LeaseExpired reports whether the session has outlived its lease.
func (s *Session) LeaseExpired(now time.Time) bool {
	return now.After(s.LeaseExpiresAt)
}

// RecordAttempt increments and returns the attempt count for a
// recoverable sub-step.
func (s *Session) RecordAttempt(step string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	s.attempts[step]++
	return s.attempts[step]
}

// SetResult records the tokens of a completed authorization. Passing
// nil clears a result that lost the terminal race.
func (s *Session) SetResult(result *TokenBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

// SetFailureDetail records human-readable context for a failure state.
func (s *Session) SetFailureDetail(detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureDetail = detail
}

// SetLastPage records the most recent page classification.
func (s *Session) SetLastPage(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPage = page
}

// AddSnapshot appends a diagnostic capture to the session.
func (s *Session) AddSnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
}

// SetCleanup registers the resource-release function for this session:
// browser close, profile stop, slot release. It runs at most once no
// matter how many paths request it.
func (s *Session) SetCleanup(fn func()) {
	s.cleanup.fn = fn
}

// RunCleanup executes the registered cleanup function exactly once.
func (s *Session) RunCleanup() {
	s.cleanup.once.Do(func() {
		if s.cleanup.fn != nil {
			s.cleanup.fn()
		}
	})
}
