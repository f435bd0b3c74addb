package browser

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/shop-e2e/internal/errs"
	"github.com/kuitang/shop-e2e/internal/obs"
)

// LaunchOptions selects and configures the browser process.
type LaunchOptions struct {
	Browser  string // chromium, firefox or webkit; empty means chromium
	Headless bool
	SlowMo   time.Duration

	// Applied to every page created by NewPage. Zero keeps Playwright's default.
	DefaultTimeout    time.Duration
	NavigationTimeout time.Duration
}

// Launcher owns a Playwright driver and one browser process.
type Launcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    LaunchOptions

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Playwright and the configured browser. Driver start-up
// failures are Unavailable so callers can skip rather than fail.
func Launch(opts LaunchOptions) (*Launcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "start playwright", err)
	}

	bt, err := browserTypeFor(pw, opts.Browser)
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}

	launch := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(opts.Headless)}
	if opts.SlowMo > 0 {
		launch.SlowMo = ms(opts.SlowMo)
	}
	b, err := bt.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, fmt.Sprintf("launch %s", bt.Name()), err)
	}

	obs.Pkg("browser").Info("browser_launched", "browser", bt.Name(), "version", b.Version(), "headless", opts.Headless)
	return &Launcher{pw: pw, browser: b, opts: opts}, nil
}

func browserTypeFor(pw *playwright.Playwright, name string) (playwright.BrowserType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "chromium":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit":
		return pw.WebKit, nil
	default:
		return nil, errs.New(errs.Configuration, fmt.Sprintf("unsupported browser %q", name))
	}
}

// Browser returns the launched browser.
func (l *Launcher) Browser() playwright.Browser {
	return l.browser
}

// NewContext creates an isolated browser context with the launcher's default
// timeouts applied.
func (l *Launcher) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	ctx, err := l.browser.NewContext(options...)
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	if l.opts.DefaultTimeout > 0 {
		ctx.SetDefaultTimeout(float64(l.opts.DefaultTimeout.Milliseconds()))
	}
	if l.opts.NavigationTimeout > 0 {
		ctx.SetDefaultNavigationTimeout(float64(l.opts.NavigationTimeout.Milliseconds()))
	}
	return ctx, nil
}

// NewPage opens a page in a fresh context. Closing the returned context
// closes the page.
func (l *Launcher) NewPage() (playwright.Page, playwright.BrowserContext, error) {
	ctx, err := l.NewContext()
	if err != nil {
		return nil, nil, err
	}
	page, err := ctx.NewPage()
	if err != nil {
		_ = ctx.Close()
		return nil, nil, fmt.Errorf("create page: %w", err)
	}
	return page, ctx, nil
}

// Close shuts down the browser and the driver. Safe to call twice.
func (l *Launcher) Close() error {
	l.closeOnce.Do(func() {
		if err := l.browser.Close(); err != nil {
			l.closeErr = fmt.Errorf("close browser: %w", err)
		}
		if err := l.pw.Stop(); err != nil && l.closeErr == nil {
			l.closeErr = fmt.Errorf("stop playwright: %w", err)
		}
	})
	return l.closeErr
}
