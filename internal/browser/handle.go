package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Handle is the narrow surface the authorization flow needs from a
// connected browser. Implementations wrap a single page in a remote
// profile; all operations carry explicit timeouts because remote
// debugging endpoints stall rather than fail fast.
type Handle interface {
	// Navigate loads the given URL and waits for the load event.
	Navigate(url string, timeout time.Duration) error

	// CurrentURL returns the page's current address. It never blocks
	// on the network, so callers may poll it.
	CurrentURL() string

	// WaitVisible blocks until an element matching the selector is
	// visible, or the timeout elapses.
	WaitVisible(selector string, timeout time.Duration) error

	// Click clicks the first element matching the selector.
	Click(selector string, timeout time.Duration) error

	// Fill sets the value of the input matching the selector.
	Fill(selector, value string, timeout time.Duration) error

	// Content returns the page's HTML, for diagnostic captures.
	Content() (string, error)

	// Close detaches from the page. It must be safe to call more than
	// once; the remote profile itself is stopped separately.
	Close() error
}

// Connector establishes a Handle against a remote debugging endpoint.
type Connector interface {
	Connect(ctx context.Context, endpoint string, timeout time.Duration) (Handle, error)
}

// ConnectError indicates the debugging endpoint could not be attached
// within the timeout. The profile may still be running and must be
// stopped by the caller.
type ConnectError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to browser at %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsConnectError checks if an error is a ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}
