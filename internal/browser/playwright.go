package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"authflow/pkg/logging"
)

// PlaywrightConnector attaches to remote browser profiles over the
// Chrome DevTools Protocol. The playwright driver process is started
// lazily on first connect and shared across all sessions.
type PlaywrightConnector struct {
	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightConnector creates an unstarted connector. The driver is
// launched on the first Connect call.
func NewPlaywrightConnector() *PlaywrightConnector {
	return &PlaywrightConnector{}
}

func (c *PlaywrightConnector) driver() (*playwright.Playwright, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pw != nil {
		return c.pw, nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright driver: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}
	c.pw = pw
	return pw, nil
}

// Connect attaches to the profile's remote debugging endpoint and
// returns a handle on its active page. A profile started by the
// provider always carries at least one open page; a fresh one is
// created only if none exists.
func (c *PlaywrightConnector) Connect(ctx context.Context, endpoint string, timeout time.Duration) (Handle, error) {
	pw, err := c.driver()
	if err != nil {
		return nil, &ConnectError{Endpoint: endpoint, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := pw.Chromium.ConnectOverCDP(endpoint, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, &ConnectError{Endpoint: endpoint, Err: err}
	}

	page, err := activePage(browser)
	if err != nil {
		_ = browser.Close()
		return nil, &ConnectError{Endpoint: endpoint, Err: err}
	}

	logging.Debug("Browser", "connected to %s", endpoint)
	return &playwrightHandle{browser: browser, page: page}, nil
}

func activePage(browser playwright.Browser) (playwright.Page, error) {
	for _, bc := range browser.Contexts() {
		if pages := bc.Pages(); len(pages) > 0 {
			return pages[0], nil
		}
	}
	page, err := browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return page, nil
}

// Shutdown stops the shared playwright driver. Connect must not be
// called afterwards.
func (c *PlaywrightConnector) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pw == nil {
		return nil
	}
	err := c.pw.Stop()
	c.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright driver: %w", err)
	}
	return nil
}

type playwrightHandle struct {
	browser playwright.Browser
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

func (h *playwrightHandle) Navigate(url string, timeout time.Duration) error {
	_, err := h.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (h *playwrightHandle) CurrentURL() string {
	return h.page.URL()
}

func (h *playwrightHandle) WaitVisible(selector string, timeout time.Duration) error {
	_, err := h.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return nil
}

func (h *playwrightHandle) Click(selector string, timeout time.Duration) error {
	err := h.page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

func (h *playwrightHandle) Fill(selector, value string, timeout time.Duration) error {
	err := h.page.Fill(selector, value, playwright.PageFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("fill of %q failed: %w", selector, err)
	}
	return nil
}

func (h *playwrightHandle) Content() (string, error) {
	content, err := h.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return content, nil
}

func (h *playwrightHandle) Close() error {
	h.closeOnce.Do(func() {
		// Detach only; the remote profile keeps its browser running
		// until the provider stops it.
		h.closeErr = h.browser.Close()
	})
	return h.closeErr
}
