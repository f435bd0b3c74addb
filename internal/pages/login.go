package pages

import (
	"github.com/kuitang/shop-e2e/internal/browser"
)

const (
	signupHeading = ".signup-form h2"
	signupName    = `input[data-qa="signup-name"]`
	signupEmail   = `input[data-qa="signup-email"]`
	signupButton  = `button[data-qa="signup-button"]`
	signupError   = ".signup-form p"
	loginEmail    = `input[data-qa="login-email"]`
	loginPassword = `input[data-qa="login-password"]`
	loginButton   = `button[data-qa="login-button"]`
	loginError    = ".login-form p"
)

// LoginPage holds both the login and the new-user signup forms.
type LoginPage struct {
	*browser.BasePage
	site Site
}

// Login returns the signup / login page of the site.
func (s Site) Login(sess browser.Session) *LoginPage {
	return &LoginPage{BasePage: s.page(sess, "login", "/login"), site: s}
}

// SignupHeading returns the heading over the signup form.
func (p *LoginPage) SignupHeading() (string, error) {
	return p.site.text(p.Session(), signupHeading)
}

// StartSignup submits name and email to the signup form.
func (p *LoginPage) StartSignup(name, email string) (*SignupPage, error) {
	s := p.Session()
	if err := p.site.fill(s, signupName, name); err != nil {
		return nil, err
	}
	if err := p.site.fill(s, signupEmail, email); err != nil {
		return nil, err
	}
	if err := p.site.click(s, signupButton); err != nil {
		return nil, err
	}
	return p.site.Signup(s), nil
}

// SignupError returns the message shown when signup is refused.
func (p *LoginPage) SignupError() (string, error) {
	return p.site.text(p.Session(), signupError)
}

// Login submits credentials. The returned home page is only meaningful when
// the credentials were accepted; check LoginError otherwise.
func (p *LoginPage) Login(email, password string) (*HomePage, error) {
	s := p.Session()
	if err := p.site.fill(s, loginEmail, email); err != nil {
		return nil, err
	}
	if err := p.site.fill(s, loginPassword, password); err != nil {
		return nil, err
	}
	if err := p.site.click(s, loginButton); err != nil {
		return nil, err
	}
	return p.site.Home(s), nil
}

// LoginError returns the message shown for rejected credentials.
func (p *LoginPage) LoginError() (string, error) {
	return p.site.text(p.Session(), loginError)
}
