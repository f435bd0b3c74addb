package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/shop-e2e/internal/artifacts"
	"github.com/kuitang/shop-e2e/internal/errs"
	"github.com/kuitang/shop-e2e/internal/obs"
)

// DefaultScreenshotDir is where BasePage screenshots go unless a store is set.
const DefaultScreenshotDir = "test-results/screenshots"

const screenshotSaveTimeout = 30 * time.Second

// Page is the capability set every page object exposes.
type Page interface {
	Name() string
	Navigate() error
	Title() (string, error)
	CurrentURL() string
	WaitForLoad() error
	Screenshot(name string) error
}

// BasePage binds a session to a fixed URL. Concrete pages embed *BasePage and
// add their own selectors and actions.
type BasePage struct {
	session    Session
	url        string
	name       string
	store      artifacts.Store
	navTimeout time.Duration
}

var _ Page = (*BasePage)(nil)

// PageOption configures a BasePage.
type PageOption func(*BasePage)

// WithName sets the logical page name used in logs. Defaults to the URL.
func WithName(name string) PageOption {
	return func(p *BasePage) { p.name = name }
}

// WithArtifactStore sets where screenshots are persisted.
func WithArtifactStore(store artifacts.Store) PageOption {
	return func(p *BasePage) { p.store = store }
}

// WithNavigationTimeout bounds Navigate and WaitForLoad. Zero keeps the
// driver's default.
func WithNavigationTimeout(d time.Duration) PageOption {
	return func(p *BasePage) { p.navTimeout = d }
}

// NewBasePage returns a page for url on session. An empty url is accepted
// here and rejected by Navigate.
func NewBasePage(session Session, url string, opts ...PageOption) *BasePage {
	p := &BasePage{session: session, url: url}
	for _, opt := range opts {
		opt(p)
	}
	if p.name == "" {
		p.name = url
	}
	if p.store == nil {
		p.store = artifacts.NewFSStore(nil, DefaultScreenshotDir)
	}
	return p
}

// Session returns the underlying browser session.
func (p *BasePage) Session() Session { return p.session }

// URL returns the page's configured URL.
func (p *BasePage) URL() string { return p.url }

// Name returns the logical page name.
func (p *BasePage) Name() string { return p.name }

// Navigate loads the page URL. Without a URL it fails with a configuration
// error and does not touch the session.
func (p *BasePage) Navigate() error {
	if p.url == "" {
		return errs.New(errs.Configuration, fmt.Sprintf("page %q has no URL to navigate to", p.name))
	}
	var opts playwright.PageGotoOptions
	if p.navTimeout > 0 {
		opts.Timeout = ms(p.navTimeout)
	}
	obs.Pkg("browser").Debug("navigate", "page", p.name, "url", p.url)
	if _, err := p.session.Goto(p.url, opts); err != nil {
		return fmt.Errorf("navigate to %s: %w", p.url, err)
	}
	return nil
}

// Title returns the live document title.
func (p *BasePage) Title() (string, error) {
	return p.session.Title()
}

// CurrentURL returns the session's current URL.
func (p *BasePage) CurrentURL() string {
	return p.session.URL()
}

// WaitForLoad blocks until network activity settles.
func (p *BasePage) WaitForLoad() error {
	opts := playwright.PageWaitForLoadStateOptions{State: playwright.LoadStateNetworkidle}
	if p.navTimeout > 0 {
		opts.Timeout = ms(p.navTimeout)
	}
	if err := p.session.WaitForLoadState(opts); err != nil {
		return fmt.Errorf("wait for %s to load: %w", p.name, err)
	}
	return nil
}

// Screenshot captures the full page to a new artifact named after name.
// The file name uses artifacts.SanitizeName(name), so characters outside
// [a-zA-Z0-9._-] become underscores.
func (p *BasePage) Screenshot(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), screenshotSaveTimeout)
	defer cancel()
	_, err := TakeScreenshot(ctx, p.session, p.store, name)
	return err
}
