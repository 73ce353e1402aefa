package engine

import (
	"context"
	"time"

	"authflow/internal/browser"
	"authflow/internal/config"
	"authflow/internal/gate"
	"authflow/internal/oauthx"
	"authflow/internal/session"
	"authflow/pkg/logging"
)

// callbackPollInterval is how often the machine samples the page URL
// while waiting for the provider to redirect to the callback.
const callbackPollInterval = 250 * time.Millisecond

// machine drives a single session through the authorization flow. It
// owns the browser handle and the gate slot; every state transition
// goes through the registry's check-and-set, so a reaper force shows
// up as a conflict at the next transition and the machine unwinds.
type machine struct {
	engine *Engine
	s      *session.Session
	slot   *gate.Slot
	app    config.AppConfig
	creds  Credentials

	handle  browser.Handle
	authReq *oauthx.AuthorizationRequest
	cur     session.State
}

func (m *machine) run() {
	defer m.finish()

	m.cur = session.StatePending
	m.s.SetCleanup(m.releaseResources)

	if !m.to(session.StateProfileStarting) {
		return
	}

	endpoint, err := m.engine.provider.StartProfile(m.s.Context(), m.s.ProfileID)
	if err != nil {
		m.fail(session.StateProfileStartFailed, err.Error())
		return
	}

	m.handle, err = m.engine.connector.Connect(m.s.Context(), endpoint, m.engine.cfg.Browser.ConnectTimeout.Std())
	if err != nil {
		m.fail(session.StateBrowserConnectFail, err.Error())
		return
	}
	if !m.to(session.StateBrowserConnected) {
		return
	}

	m.authReq, err = oauthx.NewAuthorizationRequest(m.app)
	if err != nil {
		m.fail(session.StateUnexpectedPage, err.Error())
		return
	}

	if err := m.handle.Navigate(m.authReq.URL, m.engine.cfg.Browser.NavigationTimeout.Std()); err != nil {
		m.fail(session.StateUnexpectedPage, err.Error())
		return
	}

	m.loop()
}

// loop classifies the current page and dispatches until a terminal
// state is reached or a transition conflict signals a force.
func (m *machine) loop() {
	for {
		if m.s.Context().Err() != nil {
			m.fail(session.StateTimedOut, "session cancelled")
			return
		}
		if !m.to(session.StatePageClassified) {
			return
		}

		kind := m.engine.classify(m.handle, m.authReq)
		m.s.SetLastPage(kind.String())
		logging.Debug("Engine", "session %s classified page as %s at %s", m.s.ID, kind, m.handle.CurrentURL())

		switch kind {
		case pageCallback:
			m.handleCallback()
			return
		case pageLogin:
			if !m.handleLogin() {
				return
			}
		case pageConsent:
			m.handleConsent()
			return
		case pageDenied:
			m.fail(session.StateUserDenied, "provider page indicates the user cancelled the authorization")
			return
		default:
			m.snapshot()
			m.fail(session.StateUnexpectedPage, "page matched no known element candidates")
			return
		}
	}
}

// handleLogin fills and submits the login form. It returns true when
// the loop should continue with a fresh classification; credentials
// may lead to an interstitial or straight to consent.
func (m *machine) handleLogin() bool {
	if m.s.RecordAttempt("login") > m.engine.cfg.Engine.LoginAttemptCeiling {
		m.snapshot()
		m.fail(session.StateLoginFailed, "login page still shown after attempt ceiling")
		return false
	}
	if !m.to(session.StateLoginRequired) {
		return false
	}
	if m.creds.Username == "" && m.creds.Password == "" {
		m.fail(session.StateLoginFailed, "login required but no credentials provided")
		return false
	}

	wait := m.engine.cfg.Browser.ElementWait.Std()
	strategy := m.engine.strategy

	if sel, ok := strategy.Probe(m.handle, browser.PurposeLoginUser, m.engine.cfg.Browser.ProbeWait.Std()); ok {
		if err := m.handle.Fill(sel, m.creds.Username, wait); err != nil {
			m.fail(session.StateLoginFailed, err.Error())
			return false
		}
		// Some providers split username and password across pages.
		if sel, ok := strategy.Probe(m.handle, browser.PurposeLoginContinue, m.engine.cfg.Browser.ProbeWait.Std()); ok {
			if err := m.handle.Click(sel, wait); err != nil {
				m.fail(session.StateLoginFailed, err.Error())
				return false
			}
		}
	}

	if sel, ok := strategy.Probe(m.handle, browser.PurposeLoginPassword, m.engine.cfg.Browser.ProbeWait.Std()); ok {
		if err := m.handle.Fill(sel, m.creds.Password, wait); err != nil {
			m.fail(session.StateLoginFailed, err.Error())
			return false
		}
	}

	sel, err := strategy.Find(m.handle, browser.PurposeLoginSubmit, wait)
	if err != nil {
		m.snapshot()
		m.fail(session.StateLoginFailed, err.Error())
		return false
	}
	if err := m.handle.Click(sel, wait); err != nil {
		m.fail(session.StateLoginFailed, err.Error())
		return false
	}

	if !m.to(session.StateCredentialsSubmitted) {
		return false
	}

	if _, ok := strategy.Probe(m.handle, browser.PurposeLoginError, m.engine.cfg.Browser.ProbeWait.Std()); ok {
		logging.Warn("Engine", "session %s: provider reported a login error, will re-classify", m.s.ID)
	}
	return true
}

// handleConsent approves the consent screen and waits for the provider
// to redirect to the callback.
func (m *machine) handleConsent() {
	if !m.to(session.StateConsentRequired) {
		return
	}

	sel, err := m.engine.strategy.Find(m.handle, browser.PurposeConsentApprove, m.engine.cfg.Browser.ElementWait.Std())
	if err != nil {
		m.snapshot()
		m.fail(session.StateUnexpectedPage, err.Error())
		return
	}
	if err := m.handle.Click(sel, m.engine.cfg.Browser.ElementWait.Std()); err != nil {
		m.fail(session.StateUnexpectedPage, err.Error())
		return
	}
	if !m.to(session.StateConsentSubmitted) {
		return
	}

	if !m.waitCallback() {
		return
	}
	m.handleCallback()
}

// waitCallback polls the page URL until it reaches the registered
// callback address or the callback wait elapses.
func (m *machine) waitCallback() bool {
	deadline := time.Now().Add(m.engine.cfg.Browser.CallbackWait.Std())
	for {
		if oauthx.IsCallback(m.handle.CurrentURL(), m.authReq.CallbackURL) {
			return true
		}
		if time.Now().After(deadline) {
			m.snapshot()
			m.fail(session.StateCallbackTimeout, "provider never redirected to the callback")
			return false
		}
		select {
		case <-m.s.Context().Done():
			m.fail(session.StateTimedOut, "session cancelled while waiting for callback")
			return false
		case <-time.After(callbackPollInterval):
		}
	}
}

// handleCallback parses the callback the browser landed on and, when
// it carries a code, redeems it.
func (m *machine) handleCallback() {
	cb, err := oauthx.ParseCallback(m.handle.CurrentURL(), m.authReq.State)
	if err != nil {
		m.snapshot()
		m.fail(session.StateUnexpectedPage, err.Error())
		return
	}

	if cb.ErrorCode != "" {
		if cb.Denied() {
			m.fail(session.StateUserDenied, cb.ErrorDescription)
			return
		}
		m.fail(session.StateTokenExchangeFailed, "provider error on callback: "+cb.ErrorCode)
		return
	}

	if !m.to(session.StateCallbackReceived) {
		return
	}
	if !m.to(session.StateTokenExchanging) {
		return
	}

	token, err := m.engine.exchanger.Exchange(m.s.Context(), m.app, cb.Code, m.authReq.Verifier)
	if err != nil {
		m.fail(session.StateTokenExchangeFailed, err.Error())
		return
	}

	m.s.SetResult(&session.TokenBundle{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       m.app.Scopes,
		IssuedAt:     time.Now(),
	})
	if !m.to(session.StateCompleted) {
		// The force won the race, but the tokens were already issued;
		// they stay off the record because the forced state stands.
		m.s.SetResult(nil)
		return
	}
	logging.Info("Engine", "session %s completed for account %s (app %s)", m.s.ID, m.s.AccountID, m.s.AppID)
}

// to attempts the transition from the machine's tracked state. A
// conflict means something terminal already happened; the machine
// stops all further side-effecting work.
func (m *machine) to(next session.State) bool {
	if err := m.engine.registry.Transition(m.s.ID, m.cur, next); err != nil {
		logging.Warn("Engine", "session %s transition to %s refused: %v", m.s.ID, next, err)
		return false
	}
	m.cur = next
	return true
}

// fail moves to the terminal state with its failure detail in one
// step, so a status read never sees one without the other. A conflict
// here means a force got there first, which is fine: the session is
// terminal either way.
func (m *machine) fail(to session.State, detail string) {
	err := m.engine.registry.TransitionWithDetail(m.s.ID, m.cur, to, detail)
	if err != nil {
		logging.Debug("Engine", "session %s: %s blocked: %v", m.s.ID, to, err)
		return
	}
	m.cur = to
	logging.Warn("Engine", "session %s failed: %s (%s)", m.s.ID, to, detail)
}

// snapshot captures the live page for later diagnosis. Best effort:
// a dead handle just means no capture.
func (m *machine) snapshot() {
	if m.handle == nil {
		return
	}
	html, err := m.handle.Content()
	if err != nil {
		logging.Warn("Engine", "session %s: page capture failed: %v", m.s.ID, err)
		return
	}
	m.s.AddSnapshot(session.Snapshot{
		URL:        m.handle.CurrentURL(),
		HTML:       html,
		State:      m.s.State(),
		CapturedAt: time.Now(),
	})
}

// releaseResources detaches the browser, stops the remote profile,
// and frees the gate slot. Registered as the session's once-guarded
// cleanup so a forced termination and a normal finish cannot both run
// it.
func (m *machine) releaseResources() {
	if m.handle != nil {
		if err := m.handle.Close(); err != nil {
			logging.Warn("Engine", "session %s: browser detach failed: %v", m.s.ID, err)
		}
	}

	// The session context may already be cancelled; profile stop gets
	// its own short deadline so cleanup still reaches the provider.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.engine.provider.StopProfile(ctx, m.s.ProfileID); err != nil {
		logging.Error("Engine", err, "session %s: profile stop failed", m.s.ID)
	}

	m.slot.Release()
}

// finish runs when the machine goroutine unwinds, whatever the path:
// it releases resources exactly once, archives the terminal record,
// and evicts the session from the registry.
func (m *machine) finish() {
	m.s.RunCleanup()
	m.s.Cancel()
	m.engine.archiveAndRemove(m.s)
}
