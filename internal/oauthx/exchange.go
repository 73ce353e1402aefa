package oauthx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"authflow/internal/config"
	"authflow/pkg/logging"
)

// Exchanger redeems an authorization code for tokens.
type Exchanger interface {
	Exchange(ctx context.Context, app config.AppConfig, code, verifier string) (*oauth2.Token, error)
}

// ExchangeError indicates the code could not be redeemed. Transient
// errors exhausted their retries; non-transient ones were rejected by
// the provider outright.
type ExchangeError struct {
	Transient bool
	Err       error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.Transient {
		return fmt.Sprintf("token exchange failed after retries: %v", e.Err)
	}
	return fmt.Sprintf("token exchange rejected: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// IsExchangeError checks if an error is an ExchangeError.
func IsExchangeError(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee)
}

// Client performs token exchanges with bounded retries. Only errors
// that might be load-related are retried; a provider that rejects the
// grant will reject it every time, and authorization codes are
// single-use.
type Client struct {
	maxAttempts    int
	initialBackoff time.Duration
}

// NewClient creates an exchange client with the given retry policy.
func NewClient(cfg config.ExchangeConfig) *Client {
	return &Client{
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff.Std(),
	}
}

// Exchange redeems the authorization code using the PKCE verifier the
// authorization request was built with.
func (c *Client) Exchange(ctx context.Context, app config.AppConfig, code, verifier string) (*oauth2.Token, error) {
	cfg := oauthConfig(app)

	var transient bool
	op := func() (*oauth2.Token, error) {
		token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
		if err != nil {
			if isTransient(err) {
				transient = true
				logging.Warn("OAuthExchange", "transient exchange error for app %s, retrying: %v", app.ID, err)
				return nil, err
			}
			transient = false
			return nil, backoff.Permanent(err)
		}
		return token, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff

	token, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.maxAttempts)),
	)
	if err != nil {
		return nil, &ExchangeError{Transient: transient, Err: err}
	}

	logging.Debug("OAuthExchange", "exchange succeeded for app %s", app.ID)
	return token, nil
}

// isTransient classifies an exchange failure. Provider 5xx responses
// and transport errors are worth retrying; 4xx responses mean the
// grant itself was refused.
func isTransient(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError
	}
	// Anything that never produced an HTTP response is a transport
	// failure.
	return true
}
