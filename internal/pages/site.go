// Package pages holds page objects for the Automation Exercise storefront.
// Each page embeds *browser.BasePage and adds the selectors and actions of
// one screen.
package pages

import (
	"strings"

	"github.com/kuitang/shop-e2e/internal/browser"
)

// Site is the storefront under test plus the bounds page actions run with.
type Site struct {
	BaseURL string
	// Wait bounds elements a page action requires.
	Wait browser.WaitOptions
	// Probe bounds checks for optional elements. Zero uses
	// browser.DefaultProbeTimeout, never Wait.
	Probe browser.WaitOptions
	Nav   browser.NavigationOptions
	// PageOptions are applied to every page built from this site.
	PageOptions []browser.PageOption
}

// URL joins path onto the site's base URL.
func (s Site) URL(path string) string {
	base := strings.TrimRight(s.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (s Site) page(sess browser.Session, name, path string) *browser.BasePage {
	opts := append([]browser.PageOption{browser.WithName(name)}, s.PageOptions...)
	return browser.NewBasePage(sess, s.URL(path), opts...)
}

func (s Site) click(sess browser.Session, selector string) error {
	return browser.ClickAndWaitForNavigation(sess, selector, s.Nav)
}

func (s Site) fill(sess browser.Session, selector, value string) error {
	return browser.FillAndVerify(sess, selector, value, s.Wait)
}

func (s Site) exists(sess browser.Session, selector string) (bool, error) {
	return browser.ElementExists(sess, selector, s.Probe)
}

func (s Site) text(sess browser.Session, selector string) (string, error) {
	text, err := browser.GetElementText(sess, selector, s.Wait)
	return strings.TrimSpace(text), err
}
