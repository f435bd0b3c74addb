package pages

import (
	"github.com/kuitang/shop-e2e/internal/browser"
)

const (
	accountCreatedHeading = `h2[data-qa="account-created"]`
	accountDeletedHeading = `h2[data-qa="account-deleted"]`
	continueButton        = `a[data-qa="continue-button"]`
)

// AccountCreatedPage confirms a new account. The user is logged in by then.
type AccountCreatedPage struct {
	*browser.BasePage
	site Site
}

// AccountCreated returns the confirmation page shown after signup.
func (s Site) AccountCreated(sess browser.Session) *AccountCreatedPage {
	return &AccountCreatedPage{BasePage: s.page(sess, "account_created", "/account_created"), site: s}
}

// Message returns the confirmation heading.
func (p *AccountCreatedPage) Message() (string, error) {
	return p.site.text(p.Session(), accountCreatedHeading)
}

// Continue returns to the home page.
func (p *AccountCreatedPage) Continue() (*HomePage, error) {
	if err := p.site.click(p.Session(), continueButton); err != nil {
		return nil, err
	}
	return p.site.Home(p.Session()), nil
}

// AccountDeletedPage confirms a deleted account.
type AccountDeletedPage struct {
	*browser.BasePage
	site Site
}

// AccountDeleted returns the page shown after deleting an account.
func (s Site) AccountDeleted(sess browser.Session) *AccountDeletedPage {
	return &AccountDeletedPage{BasePage: s.page(sess, "account_deleted", "/delete_account"), site: s}
}

// Message returns the confirmation heading.
func (p *AccountDeletedPage) Message() (string, error) {
	return p.site.text(p.Session(), accountDeletedHeading)
}

// Continue returns to the home page.
func (p *AccountDeletedPage) Continue() (*HomePage, error) {
	if err := p.site.click(p.Session(), continueButton); err != nil {
		return nil, err
	}
	return p.site.Home(p.Session()), nil
}
