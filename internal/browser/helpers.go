package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/shop-e2e/internal/artifacts"
	"github.com/kuitang/shop-e2e/internal/errs"
	"github.com/kuitang/shop-e2e/internal/obs"
)

// WaitForElement waits until selector is visible and returns a locator for
// its first match. Times out after DefaultElementTimeout with an
// ElementNotFound error.
func WaitForElement(s Session, selector string, opts ...WaitOptions) (playwright.Locator, error) {
	timeout := waitTimeout(opts, DefaultElementTimeout)
	loc := s.Locator(selector).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	})
	if err != nil {
		return nil, elementError("wait for element", selector, timeout, err)
	}
	return loc, nil
}

// FillAndVerify fills selector with value and reads it back. A read-back that
// differs from value is an Assertion error.
func FillAndVerify(s Session, selector, value string, opts ...WaitOptions) error {
	timeout := waitTimeout(opts, DefaultElementTimeout)
	loc := s.Locator(selector).First()
	if err := loc.Fill(value, playwright.LocatorFillOptions{Timeout: ms(timeout)}); err != nil {
		return elementError("fill", selector, timeout, err)
	}
	actual, err := loc.InputValue(playwright.LocatorInputValueOptions{Timeout: ms(timeout)})
	if err != nil {
		return elementError("read back", selector, timeout, err)
	}
	if actual != value {
		return errs.New(errs.Assertion, fmt.Sprintf("fill %q: expected value %q, got %q", selector, value, actual))
	}
	return nil
}

// ClickAndWaitForNavigation clicks selector while a network-idle wait is
// already registered, then waits for idle again so a navigation the click
// started is finished too. A click that navigates nowhere returns as soon as
// the page is idle. A failed click returns immediately without awaiting the
// pending wait.
func ClickAndWaitForNavigation(s Session, selector string, opts ...NavigationOptions) error {
	o := navigationOptions(opts)
	idle := playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(o.Timeout),
	}

	settled := make(chan error, 1)
	go func() {
		settled <- s.WaitForLoadState(idle)
	}()

	if err := s.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: ms(o.ClickTimeout)}); err != nil {
		return elementError("click", selector, o.ClickTimeout, err)
	}
	if err := <-settled; err != nil {
		return fmt.Errorf("click %q: wait for network idle: %w", selector, err)
	}
	if err := s.WaitForLoadState(idle); err != nil {
		return fmt.Errorf("click %q: wait for navigation to settle: %w", selector, err)
	}
	return nil
}

// URLMatcher selects response URLs for WaitForAPIResponse.
type URLMatcher struct {
	desc  string
	match func(string) bool
}

// URLPrefix matches URLs starting with prefix.
func URLPrefix(prefix string) URLMatcher {
	return URLMatcher{desc: prefix + "*", match: func(u string) bool { return strings.HasPrefix(u, prefix) }}
}

// URLRegexp matches URLs the expression finds a match in.
func URLRegexp(re *regexp.Regexp) URLMatcher {
	return URLMatcher{desc: re.String(), match: re.MatchString}
}

// Matches reports whether url satisfies the matcher.
func (m URLMatcher) Matches(url string) bool {
	return m.match != nil && m.match(url)
}

func (m URLMatcher) String() string { return m.desc }

// WaitForAPIResponse runs trigger and returns the first response whose URL
// matches and whose status is exactly 200. Matching responses with any other
// status are skipped. The wait is registered before trigger runs; a nil
// trigger just waits.
func WaitForAPIResponse(s Session, matcher URLMatcher, trigger func() error, opts ...WaitOptions) (playwright.Response, error) {
	if matcher.match == nil {
		return nil, errs.New(errs.Configuration, "wait for API response: empty URL matcher")
	}
	timeout := waitTimeout(opts, DefaultElementTimeout)
	if trigger == nil {
		trigger = func() error { return nil }
	}

	// ExpectResponse only takes URL matchers; status filtering needs the
	// generic event waiter with a typed predicate.
	ev, err := s.ExpectEvent("response", trigger, playwright.PageExpectEventOptions{
		Predicate: func(r playwright.Response) bool {
			return matcher.Matches(r.URL()) && r.Status() == 200
		},
		Timeout: ms(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("wait for 200 response matching %s: %w", matcher, err)
	}
	resp, ok := ev.(playwright.Response)
	if !ok {
		return nil, fmt.Errorf("wait for 200 response matching %s: unexpected event %T", matcher, ev)
	}
	return resp, nil
}

// GetElementText waits for selector and returns its text content. An element
// without text yields "".
func GetElementText(s Session, selector string, opts ...WaitOptions) (string, error) {
	loc, err := WaitForElement(s, selector, opts...)
	if err != nil {
		return "", err
	}
	timeout := waitTimeout(opts, DefaultElementTimeout)
	text, err := loc.TextContent(playwright.LocatorTextContentOptions{Timeout: ms(timeout)})
	if err != nil {
		return "", elementError("read text", selector, timeout, err)
	}
	return text, nil
}

// ElementExists probes for selector being attached to the DOM within
// DefaultProbeTimeout. A timeout is a negative answer, not an error; other
// driver failures are returned.
func ElementExists(s Session, selector string, opts ...WaitOptions) (bool, error) {
	timeout := waitTimeout(opts, DefaultProbeTimeout)
	err := s.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms(timeout),
	})
	switch {
	case err == nil:
		return true, nil
	case IsTimeout(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe %q: %w", selector, err)
	}
}

// TakeScreenshot captures the full page and saves it to store under name.
// Stores sanitize name, so "home page" lands as home_page-<millis>.png; see
// artifacts.SanitizeName. It returns the stored location. Capture and write
// failures are IO errors.
func TakeScreenshot(ctx context.Context, s Session, store artifacts.Store, name string) (string, error) {
	data, err := s.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		return "", errs.Wrap(errs.IO, fmt.Sprintf("capture screenshot %q", name), err)
	}
	path, err := store.Save(ctx, name, data)
	if err != nil {
		if !IsIOError(err) {
			err = errs.Wrap(errs.IO, fmt.Sprintf("save screenshot %q", name), err)
		}
		return "", err
	}
	obs.Pkg("browser").Debug("screenshot_saved", "name", name, "path", path, "bytes", len(data))
	return path, nil
}
