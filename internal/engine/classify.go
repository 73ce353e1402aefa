package engine

import (
	"strings"

	"authflow/internal/browser"
	"authflow/internal/oauthx"
	"authflow/pkg/logging"
)

// pageKind is the classifier's verdict on the current page.
type pageKind int

const (
	pageUnknown pageKind = iota
	pageCallback
	pageLogin
	pageConsent
	pageDenied
)

func (k pageKind) String() string {
	switch k {
	case pageCallback:
		return "callback"
	case pageLogin:
		return "login"
	case pageConsent:
		return "consent"
	case pageDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// deniedMarkers are URL fragments providers use for their own
// cancellation pages, outside the standard error callback.
var deniedMarkers = []string{"/denied", "/cancelled", "/canceled", "access_cancel"}

// classify decides what kind of page the browser is on. URL checks
// come first because they are free; element probes are each bounded by
// the probe wait. A cookie banner is dismissed before probing so it
// cannot mask the elements underneath.
func (e *Engine) classify(h browser.Handle, authReq *oauthx.AuthorizationRequest) pageKind {
	url := h.CurrentURL()

	if oauthx.IsCallback(url, authReq.CallbackURL) {
		return pageCallback
	}
	lower := strings.ToLower(url)
	for _, marker := range deniedMarkers {
		if strings.Contains(lower, marker) {
			return pageDenied
		}
	}

	probe := e.cfg.Browser.ProbeWait.Std()
	if sel, ok := e.strategy.Probe(h, browser.PurposeCookieAccept, probe); ok {
		if err := h.Click(sel, probe); err != nil {
			logging.Warn("Engine", "cookie banner dismissal failed: %v", err)
		}
	}

	if _, ok := e.strategy.Probe(h, browser.PurposeLoginPassword, probe); ok {
		return pageLogin
	}
	if _, ok := e.strategy.Probe(h, browser.PurposeLoginUser, probe); ok {
		return pageLogin
	}
	if _, ok := e.strategy.Probe(h, browser.PurposeConsentApprove, probe); ok {
		return pageConsent
	}
	// A page offering only a deny/cancel control is the provider's own
	// "authorization cancelled" interstitial. A real consent page has
	// an approve control and is caught above.
	if _, ok := e.strategy.Probe(h, browser.PurposeConsentDeny, probe); ok {
		return pageDenied
	}
	return pageUnknown
}
