package session

// State identifies where an authorization session is in its lifecycle.
// Transitions are monotonic along the flow graph; the only permitted
// re-entry is credentials_submitted -> page_classified, which covers a
// login that leads to a further interstitial.
type State string

const (
	StatePending              State = "pending"
	StateProfileStarting      State = "profile_starting"
	StateBrowserConnected     State = "browser_connected"
	StatePageClassified       State = "page_classified"
	StateLoginRequired        State = "login_required"
	StateCredentialsSubmitted State = "credentials_submitted"
	StateConsentRequired      State = "consent_required"
	StateConsentSubmitted     State = "consent_submitted"
	StateCallbackReceived     State = "callback_received"
	StateTokenExchanging      State = "token_exchanging"
	StateCompleted            State = "completed"

	// Terminal failure states, reachable from any non-terminal state.
	StateGateTimeout         State = "gate_timeout"
	StateProfileStartFailed  State = "profile_start_failed"
	StateBrowserConnectFail  State = "browser_connect_failed"
	StateUnexpectedPage      State = "unexpected_page"
	StateLoginFailed         State = "login_failed"
	StateUserDenied          State = "user_denied"
	StateCallbackTimeout     State = "callback_timeout"
	StateTokenExchangeFailed State = "token_exchange_failed"
	StateTimedOut            State = "timed_out"
)

// String makes State satisfy fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// Terminal returns true when no further transition may occur from s.
// Entering a terminal state releases all resources held by the session.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted,
		StateGateTimeout,
		StateProfileStartFailed,
		StateBrowserConnectFail,
		StateUnexpectedPage,
		StateLoginFailed,
		StateUserDenied,
		StateCallbackTimeout,
		StateTokenExchangeFailed,
		StateTimedOut:
		return true
	}
	return false
}

// Succeeded returns true for the single successful terminal state.
func (s State) Succeeded() bool {
	return s == StateCompleted
}
