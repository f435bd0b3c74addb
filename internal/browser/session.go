// Package browser is the page-object base and helper layer over Playwright.
//
// Everything here takes a Session, the subset of playwright.Page the helpers
// drive. Locators are never cached: each helper asks the session for a fresh
// one so the driver re-resolves it.
package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultElementTimeout bounds waits for elements a test requires.
	DefaultElementTimeout = 30 * time.Second
	// DefaultProbeTimeout bounds existence probes for optional elements.
	DefaultProbeTimeout = 5 * time.Second
	// DefaultNavigationTimeout bounds the network-idle wait around clicks.
	DefaultNavigationTimeout = 30 * time.Second
)

// Session is one browser tab. playwright.Page satisfies it.
type Session interface {
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	Title() (string, error)
	URL() string
	WaitForLoadState(options ...playwright.PageWaitForLoadStateOptions) error
	Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error)
	Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator
	ExpectEvent(event string, cb func() error, options ...playwright.PageExpectEventOptions) (interface{}, error)
}

var _ Session = (playwright.Page)(nil)

// WaitOptions bounds a single helper call. Zero fields take the helper's default.
type WaitOptions struct {
	Timeout time.Duration
}

// NavigationOptions bounds ClickAndWaitForNavigation.
type NavigationOptions struct {
	// Timeout bounds each network-idle wait.
	Timeout time.Duration
	// ClickTimeout bounds locating and clicking the element.
	ClickTimeout time.Duration
}

func waitTimeout(opts []WaitOptions, def time.Duration) time.Duration {
	if len(opts) > 0 && opts[0].Timeout > 0 {
		return opts[0].Timeout
	}
	return def
}

func navigationOptions(opts []NavigationOptions) NavigationOptions {
	o := NavigationOptions{}
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultNavigationTimeout
	}
	if o.ClickTimeout <= 0 {
		o.ClickTimeout = DefaultElementTimeout
	}
	return o
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
