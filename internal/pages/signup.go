package pages

import (
	"fmt"
	"strconv"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/shop-e2e/internal/browser"
)

const (
	accountInfoHeading = "h2.title b"
	signupPassword     = `input[data-qa="password"]`
	birthDays          = `select[data-qa="days"]`
	birthMonths        = `select[data-qa="months"]`
	birthYears         = `select[data-qa="years"]`
	newsletterBox      = `input[name="newsletter"]`
	optinBox           = `input[name="optin"]`
	firstName          = `input[data-qa="first_name"]`
	lastName           = `input[data-qa="last_name"]`
	company            = `input[data-qa="company"]`
	address1           = `input[data-qa="address"]`
	address2           = `input[data-qa="address2"]`
	country            = `select[data-qa="country"]`
	state              = `input[data-qa="state"]`
	city               = `input[data-qa="city"]`
	zipcode            = `input[data-qa="zipcode"]`
	mobileNumber       = `input[data-qa="mobile_number"]`
	createAccount      = `button[data-qa="create-account"]`
)

// SignupPage is the "Enter Account Information" form.
type SignupPage struct {
	*browser.BasePage
	site Site
}

// Signup returns the account information page of the site.
func (s Site) Signup(sess browser.Session) *SignupPage {
	return &SignupPage{BasePage: s.page(sess, "signup", "/signup"), site: s}
}

// Heading returns the form heading.
func (p *SignupPage) Heading() (string, error) {
	return p.site.text(p.Session(), accountInfoHeading)
}

// FillAccountInfo sets title, password, birth date and the mailing choices.
func (p *SignupPage) FillAccountInfo(a Account) error {
	s := p.Session()
	if a.Title != "" {
		if err := p.check(fmt.Sprintf(`input[value=%q]`, a.Title)); err != nil {
			return err
		}
	}
	if err := p.site.fill(s, signupPassword, a.Password); err != nil {
		return err
	}
	if err := p.selectValue(birthDays, strconv.Itoa(a.BirthDay)); err != nil {
		return err
	}
	if err := p.selectLabel(birthMonths, a.BirthMonth); err != nil {
		return err
	}
	if err := p.selectValue(birthYears, strconv.Itoa(a.BirthYear)); err != nil {
		return err
	}
	if a.Newsletter {
		if err := p.check(newsletterBox); err != nil {
			return err
		}
	}
	if a.Optin {
		if err := p.check(optinBox); err != nil {
			return err
		}
	}
	return nil
}

// FillAddress fills the address block.
func (p *SignupPage) FillAddress(a Account) error {
	s := p.Session()
	fields := []struct{ selector, value string }{
		{firstName, a.FirstName},
		{lastName, a.LastName},
		{company, a.Company},
		{address1, a.Address1},
		{address2, a.Address2},
	}
	for _, f := range fields {
		if err := p.site.fill(s, f.selector, f.value); err != nil {
			return err
		}
	}
	if err := p.selectValue(country, a.Country); err != nil {
		return err
	}
	for _, f := range []struct{ selector, value string }{
		{state, a.State},
		{city, a.City},
		{zipcode, a.Zipcode},
		{mobileNumber, a.MobileNumber},
	} {
		if err := p.site.fill(s, f.selector, f.value); err != nil {
			return err
		}
	}
	return nil
}

// CreateAccount submits the form.
func (p *SignupPage) CreateAccount() (*AccountCreatedPage, error) {
	if err := p.site.click(p.Session(), createAccount); err != nil {
		return nil, err
	}
	return p.site.AccountCreated(p.Session()), nil
}

func (p *SignupPage) check(selector string) error {
	loc, err := browser.WaitForElement(p.Session(), selector, p.site.Wait)
	if err != nil {
		return err
	}
	if err := loc.Check(); err != nil {
		return fmt.Errorf("check %q: %w", selector, err)
	}
	return nil
}

func (p *SignupPage) selectValue(selector, value string) error {
	return p.selectOption(selector, playwright.SelectOptionValues{Values: &[]string{value}})
}

func (p *SignupPage) selectLabel(selector, label string) error {
	return p.selectOption(selector, playwright.SelectOptionValues{Labels: &[]string{label}})
}

func (p *SignupPage) selectOption(selector string, values playwright.SelectOptionValues) error {
	loc, err := browser.WaitForElement(p.Session(), selector, p.site.Wait)
	if err != nil {
		return err
	}
	if _, err := loc.SelectOption(values); err != nil {
		return fmt.Errorf("select %q: %w", selector, err)
	}
	return nil
}
