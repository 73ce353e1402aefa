package engine

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"authflow/internal/browser"
	"authflow/internal/config"
)

// fakeProvider scripts the profile provider.
type fakeProvider struct {
	endpoint string
	startErr error

	startCalls atomic.Int32
	stopCalls  atomic.Int32
}

func (p *fakeProvider) StartProfile(ctx context.Context, profileID string) (string, error) {
	p.startCalls.Add(1)
	if p.startErr != nil {
		return "", p.startErr
	}
	return p.endpoint, nil
}

func (p *fakeProvider) StopProfile(ctx context.Context, profileID string) error {
	p.stopCalls.Add(1)
	return nil
}

// fakeConnector hands out a pre-built handle.
type fakeConnector struct {
	handle     browser.Handle
	connectErr error
}

func (c *fakeConnector) Connect(ctx context.Context, endpoint string, timeout time.Duration) (browser.Handle, error) {
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return c.handle, nil
}

// fakeHandle simulates a page whose visible elements and URL change in
// response to clicks and navigations.
type fakeHandle struct {
	mu      sync.Mutex
	url     string
	visible map[string]bool
	html    string

	// authState is captured from the navigated authorization URL so
	// scripted redirects can echo a valid state parameter.
	authState string

	onNavigate func(h *fakeHandle, target string)
	onClick    func(h *fakeHandle, selector string)

	fills      map[string]string
	clicks     []string
	closeCalls atomic.Int32
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		visible: map[string]bool{},
		fills:   map[string]string{},
		html:    "<html></html>",
	}
}

func (h *fakeHandle) Navigate(target string, timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.url = target
	if u, err := url.Parse(target); err == nil {
		if st := u.Query().Get("state"); st != "" {
			h.authState = st
		}
	}
	if h.onNavigate != nil {
		h.onNavigate(h, target)
	}
	return nil
}

func (h *fakeHandle) CurrentURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

func (h *fakeHandle) WaitVisible(selector string, timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.visible[selector] {
		return nil
	}
	return fmt.Errorf("wait for %q failed: timeout", selector)
}

func (h *fakeHandle) Click(selector string, timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.visible[selector] {
		return fmt.Errorf("click on %q failed: not visible", selector)
	}
	h.clicks = append(h.clicks, selector)
	if h.onClick != nil {
		h.onClick(h, selector)
	}
	return nil
}

func (h *fakeHandle) Fill(selector, value string, timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.visible[selector] {
		return fmt.Errorf("fill of %q failed: not visible", selector)
	}
	h.fills[selector] = value
	return nil
}

func (h *fakeHandle) Content() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.html, nil
}

func (h *fakeHandle) Close() error {
	h.closeCalls.Add(1)
	return nil
}

// show swaps the visible element set. Callers use it inside onClick
// hooks, which already run under the handle lock.
func (h *fakeHandle) show(selectors ...string) {
	h.visible = map[string]bool{}
	for _, s := range selectors {
		h.visible[s] = true
	}
}

// fakeExchanger scripts the token exchange.
type fakeExchanger struct {
	token *oauth2.Token
	err   error

	calls atomic.Int32
	code  string
}

func (x *fakeExchanger) Exchange(ctx context.Context, app config.AppConfig, code, verifier string) (*oauth2.Token, error) {
	x.calls.Add(1)
	x.code = code
	if x.err != nil {
		return nil, x.err
	}
	return x.token, nil
}

// Selector constants matching the default candidate table, so scripted
// pages and the strategy agree on what is on screen.
const (
	selUser    = `input[name="username"]`
	selPass    = `input[name="password"]`
	selSubmit  = `button[type="submit"]`
	selApprove = `button[name="authorize"]`
	selDeny    = `button:has-text("Deny")`
	selCookie  = `#onetrust-accept-btn-handler`
)
