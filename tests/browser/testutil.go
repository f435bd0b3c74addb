// Package browser provides shared test utilities for Playwright browser tests
// of the storefront. All browser test files use BrowserTestEnv via
// SetupBrowserTestEnv(t).
//
// By default the tests run against a local demo shop started in-process.
// Setting E2E_BASE_URL points them at a deployed storefront instead.
package browser

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/shop-e2e/internal/artifacts"
	helpers "github.com/kuitang/shop-e2e/internal/browser"
	"github.com/kuitang/shop-e2e/internal/config"
	"github.com/kuitang/shop-e2e/internal/email"
	"github.com/kuitang/shop-e2e/internal/obs"
	"github.com/kuitang/shop-e2e/internal/pages"
	"github.com/kuitang/shop-e2e/internal/shop"
)

const (
	// CODING AGENT RULE: Always use these timeout constants for browser tests.
	// Never introduce a larger timeout value anywhere in tests/browser.
	browserMaxTimeoutMS = 5000
	browserMaxTimeout   = 5 * time.Second

	// Exported aliases for subpackages under tests/browser.
	BrowserMaxTimeoutMS = browserMaxTimeoutMS
	BrowserMaxTimeout   = browserMaxTimeout
)

var browserFixtureMu sync.Mutex
var browserSharedFixture *BrowserTestEnv

// BrowserTestEnv is the unified test environment for all browser tests.
type BrowserTestEnv struct {
	Config  *config.Suite
	BaseURL string

	// Shop and EmailService are nil when E2E_BASE_URL targets a remote site.
	Shop         *shop.Local
	EmailService *email.MockEmailService

	Artifacts *artifacts.FSStore
	TempDir   string

	launcher  *helpers.Launcher
	browserMu sync.Mutex
}

// SetupBrowserTestEnv returns the shared environment with per-test state reset.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	env := getOrCreateSharedBrowserTestEnv(t)
	resetSharedBrowserTestEnvState(t, env)
	return env
}

func getOrCreateSharedBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()

	if browserSharedFixture != nil {
		return browserSharedFixture
	}

	tempDir, err := os.MkdirTemp("", "shop-browser-*")
	if err != nil {
		t.Fatalf("Failed to create shared browser fixture temp dir: %v", err)
	}

	browserSharedFixture = createBrowserTestEnv(t, tempDir)
	return browserSharedFixture
}

func createBrowserTestEnv(t *testing.T, tempDir string) *BrowserTestEnv {
	t.Helper()

	cfg, err := config.LoadSuite()
	if err != nil {
		_ = os.RemoveAll(tempDir)
		t.Fatalf("Failed to load suite configuration: %v", err)
	}
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))

	env := &BrowserTestEnv{
		Config:    cfg,
		TempDir:   tempDir,
		Artifacts: artifacts.NewFSStore(nil, filepath.Join(tempDir, "screenshots")),
	}

	if cfg.BaseURL == "" {
		local, err := shop.StartLocal(shop.LocalOptions{Hasher: shop.FakeInsecureHasher{}})
		if err != nil {
			_ = os.RemoveAll(tempDir)
			t.Fatalf("Failed to start local shop: %v", err)
		}
		env.Shop = local
		env.EmailService = local.Email
	}
	env.BaseURL = cfg.TargetURL(localURL(env.Shop))
	return env
}

func localURL(l *shop.Local) string {
	if l == nil {
		return ""
	}
	return l.URL()
}

func resetSharedBrowserTestEnvState(t *testing.T, env *BrowserTestEnv) {
	t.Helper()

	if env.EmailService != nil {
		env.EmailService.Clear()
	}
}

func cleanupSharedBrowserTestEnv() {
	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()
	cleanupSharedBrowserTestEnvLocked()
}

func cleanupSharedBrowserTestEnvLocked() {
	if browserSharedFixture == nil {
		return
	}
	if browserSharedFixture.launcher != nil {
		_ = browserSharedFixture.launcher.Close()
	}
	if browserSharedFixture.Shop != nil {
		browserSharedFixture.Shop.Close()
	}
	if browserSharedFixture.TempDir != "" {
		_ = os.RemoveAll(browserSharedFixture.TempDir)
	}
	browserSharedFixture = nil
}

func TestMain(m *testing.M) {
	obs.Init()
	code := m.Run()
	cleanupSharedBrowserTestEnv()
	os.Exit(code)
}

// =============================================================================
// Browser lifecycle
// =============================================================================

// InitBrowser launches the configured browser once per fixture. Tests are
// skipped when Playwright or its browsers are not installed.
func (env *BrowserTestEnv) InitBrowser(t *testing.T) {
	t.Helper()

	env.browserMu.Lock()
	defer env.browserMu.Unlock()

	if env.launcher != nil {
		return
	}

	launcher, err := helpers.Launch(helpers.LaunchOptions{
		Browser:           env.Config.Browser,
		Headless:          env.Config.Headless,
		SlowMo:            env.Config.SlowMo,
		DefaultTimeout:    browserMaxTimeout,
		NavigationTimeout: browserMaxTimeout,
	})
	if err != nil {
		if helpers.IsConfigurationError(err) {
			t.Fatalf("Invalid browser configuration: %v", err)
		}
		t.Skip("Playwright not available:", err)
	}
	env.launcher = launcher
}

// NewPage creates a page in a fresh context with default 5s timeouts. The
// context is closed when the test ends.
func (env *BrowserTestEnv) NewPage(t *testing.T) playwright.Page {
	t.Helper()

	page, ctx, err := env.launcher.NewPage()
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	page.SetDefaultTimeout(browserMaxTimeoutMS)
	page.SetDefaultNavigationTimeout(browserMaxTimeoutMS)
	return page
}

// Site returns page objects bound to the storefront under test with the
// suite's timeout ceiling applied to every action.
func (env *BrowserTestEnv) Site() pages.Site {
	return pages.Site{
		BaseURL: env.BaseURL,
		Wait:    helpers.WaitOptions{Timeout: browserMaxTimeout},
		Probe:   helpers.WaitOptions{Timeout: env.Config.ProbeTimeout},
		Nav:     helpers.NavigationOptions{Timeout: browserMaxTimeout, ClickTimeout: browserMaxTimeout},
		PageOptions: []helpers.PageOption{
			helpers.WithArtifactStore(env.Artifacts),
			helpers.WithNavigationTimeout(browserMaxTimeout),
		},
	}
}

// RequireLocalShop skips tests that inspect server-side state.
func (env *BrowserTestEnv) RequireLocalShop(t *testing.T) {
	t.Helper()
	if env.Shop == nil {
		t.Skipf("test needs the local demo shop; E2E_BASE_URL=%s", env.BaseURL)
	}
}

// =============================================================================
// Navigation and wait helpers
// =============================================================================

// Navigate navigates to a path on the storefront and waits for DOMContentLoaded.
func Navigate(t *testing.T, page playwright.Page, baseURL, path string) {
	t.Helper()

	_, err := page.Goto(baseURL+path, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		t.Fatalf("Failed to navigate to %s: %v", path, err)
	}
}

// WaitForSelector waits for an element to be visible and returns its locator.
func WaitForSelector(t *testing.T, page playwright.Page, selector string) playwright.Locator {
	t.Helper()

	locator, err := helpers.WaitForElement(page, selector, helpers.WaitOptions{Timeout: browserMaxTimeout})
	if err != nil {
		logPageState(t, page)
		t.Fatalf("Failed to wait for selector %s: %v", selector, err)
	}
	return locator
}

// RequireNoError fails the test with the page state logged when err is set.
func RequireNoError(t *testing.T, page playwright.Page, err error, action string) {
	t.Helper()
	if err != nil {
		logPageState(t, page)
		t.Fatalf("%s: %v", action, err)
	}
}

func logPageState(t *testing.T, page playwright.Page) {
	t.Helper()

	title, _ := page.Title()
	content, _ := page.Content()
	if len(content) > 500 {
		content = content[:500] + "..."
	}
	t.Logf("Current URL: %s", page.URL())
	t.Logf("Current title: %s", title)
	t.Logf("Content preview: %s", content)
}

// SaveScreenshot captures the page into the fixture's artifact store and
// returns the written path.
func (env *BrowserTestEnv) SaveScreenshot(t *testing.T, page playwright.Page, name string) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), browserMaxTimeout)
	defer cancel()
	path, err := helpers.TakeScreenshot(ctx, page, env.Artifacts, name)
	if err != nil {
		t.Fatalf("Failed to save screenshot %s: %v", name, err)
	}
	t.Logf("screenshot saved: %s", path)
	return path
}

// =============================================================================
// Account helpers
// =============================================================================

// GenerateUniqueEmail generates a unique email for test isolation.
func GenerateUniqueEmail(prefix string) string {
	suffix := make([]byte, 8)
	if _, err := crand.Read(suffix); err != nil {
		panic(fmt.Sprintf("failed to generate unique email suffix: %v", err))
	}
	return fmt.Sprintf("%s-%s@example.com", prefix, hex.EncodeToString(suffix))
}

// NewAccount returns a complete test account with a fresh email.
func NewAccount(prefix string) pages.Account {
	a := pages.NewTestAccount()
	a.Email = GenerateUniqueEmail(prefix)
	return a
}
