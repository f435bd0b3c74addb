package pages

import (
	"github.com/kuitang/shop-e2e/internal/browser"
)

const (
	homeHeading            = "h1"
	loggedInAsLink         = `a:has-text("Logged in as")`
	loggedInAsName         = `a:has-text("Logged in as") b`
	signupLoginLink        = `a[href="/login"]`
	deleteAccountLink      = `a[href="/delete_account"]`
	logoutLink             = `a[href="/logout"]`
	productsLink           = `a[href="/products"]`
	SubscribeEmailSelector = "#susbscribe_email"
	CartBadgeSelector      = "#cart-badge"
)

// ProductsAPIPath is fetched by the home page on every load.
const ProductsAPIPath = "/api/productsList"

// HomePage is the storefront landing page.
type HomePage struct {
	*browser.BasePage
	site Site
}

// Home returns the landing page of the site.
func (s Site) Home(sess browser.Session) *HomePage {
	return &HomePage{BasePage: s.page(sess, "home", "/"), site: s}
}

// NavigateAndWaitForProducts loads the page and waits for the product list
// request it makes to succeed.
func (p *HomePage) NavigateAndWaitForProducts() error {
	_, err := browser.WaitForAPIResponse(p.Session(), browser.URLPrefix(p.site.URL(ProductsAPIPath)), p.Navigate, p.site.Wait)
	return err
}

// Heading returns the site heading.
func (p *HomePage) Heading() (string, error) {
	return p.site.text(p.Session(), homeHeading)
}

// IsLoggedIn probes for the "Logged in as" link.
func (p *HomePage) IsLoggedIn() (bool, error) {
	return p.site.exists(p.Session(), loggedInAsLink)
}

// LoggedInAs returns the name shown in the "Logged in as" link.
func (p *HomePage) LoggedInAs() (string, error) {
	return p.site.text(p.Session(), loggedInAsName)
}

// GoToSignupLogin opens the signup / login page.
func (p *HomePage) GoToSignupLogin() (*LoginPage, error) {
	if err := p.site.click(p.Session(), signupLoginLink); err != nil {
		return nil, err
	}
	return p.site.Login(p.Session()), nil
}

// GoToProducts opens the product listing.
func (p *HomePage) GoToProducts() (*ProductsPage, error) {
	if err := p.site.click(p.Session(), productsLink); err != nil {
		return nil, err
	}
	return p.site.Products(p.Session()), nil
}

// DeleteAccount deletes the logged-in account.
func (p *HomePage) DeleteAccount() (*AccountDeletedPage, error) {
	if err := p.site.click(p.Session(), deleteAccountLink); err != nil {
		return nil, err
	}
	return p.site.AccountDeleted(p.Session()), nil
}

// Logout ends the session and lands on the login page.
func (p *HomePage) Logout() (*LoginPage, error) {
	if err := p.site.click(p.Session(), logoutLink); err != nil {
		return nil, err
	}
	return p.site.Login(p.Session()), nil
}
