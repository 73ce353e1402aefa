package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"authflow/pkg/logging"
)

// Provider starts and stops remote browser profiles. A started profile
// exposes a remote debugging endpoint the browser package attaches to.
type Provider interface {
	StartProfile(ctx context.Context, profileID string) (string, error)
	StopProfile(ctx context.Context, profileID string) error
}

// StartError indicates the provider could not bring a profile up.
type StartError struct {
	ProfileID string
	Err       error
}

// Error implements the error interface.
func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start profile %s: %v", e.ProfileID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StartError) Unwrap() error {
	return e.Err
}

// IsStartError checks if an error is a StartError.
func IsStartError(err error) bool {
	var se *StartError
	return errors.As(err, &se)
}

// Client talks to the profile provider's HTTP API.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

// NewClient creates a provider client. The timeout bounds each
// individual HTTP call, not the whole start sequence.
func NewClient(apiURL, token string, timeout time.Duration) *Client {
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type startResponse struct {
	WSEndpoint string `json:"wsEndpoint"`
}

// StartProfile asks the provider to start the profile's browser and
// returns its remote debugging endpoint. Transient provider errors
// (5xx, connection failures) are retried briefly; anything else fails
// immediately.
func (c *Client) StartProfile(ctx context.Context, profileID string) (string, error) {
	op := func() (string, error) {
		endpoint, err := c.start(ctx, profileID)
		if err != nil {
			var te *transientError
			if errors.As(err, &te) {
				logging.Warn("ProfileProvider", "transient error starting profile %s, retrying: %v", profileID, err)
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return endpoint, nil
	}

	endpoint, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return "", &StartError{ProfileID: profileID, Err: err}
	}

	logging.Debug("ProfileProvider", "profile %s started at %s", profileID, endpoint)
	return endpoint, nil
}

// transientError marks provider failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (c *Client) start(ctx context.Context, profileID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/profiles/%s/start", c.apiURL, profileID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build start request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &transientError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return "", &transientError{err: fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	default:
		return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed startResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse provider response: %w", err)
	}
	if parsed.WSEndpoint == "" {
		return "", fmt.Errorf("provider response missing wsEndpoint")
	}
	return parsed.WSEndpoint, nil
}

// StopProfile asks the provider to stop a profile. Stopping a profile
// that is not running is not an error; cleanup paths call this without
// knowing whether the start ever succeeded.
func (c *Client) StopProfile(ctx context.Context, profileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/profiles/%s/stop", c.apiURL, profileID), nil)
	if err != nil {
		return fmt.Errorf("failed to build stop request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to stop profile %s: %w", profileID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to stop profile %s: provider returned %d", profileID, resp.StatusCode)
	}

	logging.Debug("ProfileProvider", "profile %s stopped", profileID)
	return nil
}
