package oauthx

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"authflow/internal/config"
)

// AuthorizationRequest is everything the browser flow needs to drive
// one authorization: the URL to navigate to, and the state and PKCE
// verifier to validate and redeem the callback with.
type AuthorizationRequest struct {
	URL         string
	State       string
	Verifier    string
	CallbackURL string
}

// NewAuthorizationRequest builds a PKCE-protected authorization URL
// for the application. Every request gets a fresh state and verifier.
func NewAuthorizationRequest(app config.AppConfig) (*AuthorizationRequest, error) {
	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	cfg := oauthConfig(app)

	return &AuthorizationRequest{
		URL:         cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		State:       state,
		Verifier:    verifier,
		CallbackURL: app.CallbackURL,
	}, nil
}

func oauthConfig(app config.AppConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		RedirectURL:  app.CallbackURL,
		Scopes:       app.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  app.AuthURL,
			TokenURL: app.TokenURL,
		},
	}
}

// randomState returns 32 bytes of entropy encoded for use in a URL.
func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Callback is the parsed redirect the provider sent the browser to.
// Exactly one of Code or ErrorCode is set on a well-formed callback.
type Callback struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// Denied reports whether the provider signalled that the user refused
// the authorization.
func (c *Callback) Denied() bool {
	return c.ErrorCode == "access_denied"
}

// ParseCallback extracts the authorization response from a callback
// URL and checks its state against the one issued with the request. A
// state mismatch is treated as a failed authorization, not a retry.
func ParseCallback(rawURL, expectedState string) (*Callback, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback URL: %w", err)
	}

	q := u.Query()
	cb := &Callback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		ErrorCode:        q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	if cb.ErrorCode == "" && cb.Code == "" {
		return nil, fmt.Errorf("callback carries neither code nor error")
	}
	if cb.State != expectedState {
		return nil, fmt.Errorf("callback state mismatch")
	}
	return cb, nil
}

// IsCallback reports whether the URL has reached the registered
// callback address, regardless of its query parameters.
func IsCallback(rawURL, callbackURL string) bool {
	current, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	registered, err := url.Parse(callbackURL)
	if err != nil {
		return false
	}
	return current.Scheme == registered.Scheme &&
		current.Host == registered.Host &&
		current.Path == registered.Path
}
