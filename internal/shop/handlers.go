package shop

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/shop-e2e/internal/db"
	"github.com/kuitang/shop-e2e/internal/email"
	"github.com/kuitang/shop-e2e/internal/errs"
	"github.com/kuitang/shop-e2e/internal/logutil"
	"github.com/kuitang/shop-e2e/internal/obs"
	"github.com/kuitang/shop-e2e/internal/urlutil"
)

// Messages the public site shows; the browser suite asserts on them.
const (
	msgEmailExists   = "Email Address already exist!"
	msgBadLogin      = "Your email or password is incorrect!"
	siteTitle        = "Automation Exercise"
	loginPageTitle   = "Automation Exercise - Signup / Login"
	signupPageTitle  = "Automation Exercise - Signup"
	productPageTitle = "Automation Exercise - All Products"
)

// PageData contains common data passed to all templates.
type PageData struct {
	Title      string
	Account    *db.Account
	Subscribed bool
}

type homeData struct {
	PageData
	Products []db.Product
}

type loginData struct {
	PageData
	LoginError  string
	SignupError string
}

type signupData struct {
	PageData
	Name      string
	Email     string
	Error     string
	Days      []int
	Months    []string
	Years     []int
	Countries []string
}

type productsData struct {
	PageData
	Products []db.Product
}

type productDetailsData struct {
	PageData
	Product *db.Product
}

type errorData struct {
	PageData
	Code    int
	Message string
}

func (s *Server) pageData(r *http.Request, title string) PageData {
	return PageData{
		Title:      title,
		Account:    AccountFrom(r.Context()),
		Subscribed: r.URL.Query().Get("subscribed") == "1",
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if err := s.renderer.Render(w, status, name, data); err != nil {
		obs.From(r.Context()).Error("render_failed", "template", name, "error", err)
		s.renderer.RenderError(w, http.StatusInternalServerError, "Something went wrong.")
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("request_failed", "path", r.URL.Path, "error", err)
		s.renderer.RenderError(w, status, "Something went wrong.")
		return
	}
	s.renderer.RenderError(w, status, errs.MessageOf(err))
}

// HandleHome renders the landing page.
func (s *Server) HandleHome(w http.ResponseWriter, r *http.Request) {
	products, err := s.db.ListProducts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home.html", homeData{PageData: s.pageData(r, siteTitle), Products: products})
}

// HandleLoginPage renders the login and signup forms.
func (s *Server) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", loginData{PageData: s.pageData(r, loginPageTitle)})
}

// HandleLogin checks credentials and starts a session.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	logger := obs.From(r.Context())
	emailAddr := strings.TrimSpace(r.PostForm.Get("email"))

	acct, err := s.db.AccountByEmail(r.Context(), emailAddr)
	if err != nil && !errs.Is(err, errs.NotFound) {
		s.fail(w, r, err)
		return
	}
	if acct == nil || !s.hasher.VerifyPassword(r.PostForm.Get("password"), acct.PasswordHash) {
		logger.Info("login_rejected", "email", logutil.MaskEmail(emailAddr))
		s.render(w, r, http.StatusUnauthorized, "login.html", loginData{
			PageData:   s.pageData(r, loginPageTitle),
			LoginError: msgBadLogin,
		})
		return
	}

	if err := s.startSession(r.Context(), w, acct.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	logger.Info("login", "account_id", acct.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout ends the session.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s.endSession(r.Context(), w, r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// HandleSignup takes name and email and shows the account information form.
func (s *Server) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("name"))
	emailAddr := strings.TrimSpace(r.PostForm.Get("email"))
	if name == "" || emailAddr == "" {
		s.render(w, r, http.StatusBadRequest, "login.html", loginData{
			PageData:    s.pageData(r, loginPageTitle),
			SignupError: "Please enter your name and email address.",
		})
		return
	}

	exists, err := s.db.EmailExists(r.Context(), emailAddr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if exists {
		s.render(w, r, http.StatusConflict, "login.html", loginData{
			PageData:    s.pageData(r, loginPageTitle),
			SignupError: msgEmailExists,
		})
		return
	}
	s.render(w, r, http.StatusOK, "signup.html", s.signupData(r, name, emailAddr, ""))
}

func (s *Server) signupData(r *http.Request, name, emailAddr, errMsg string) signupData {
	d := signupData{
		PageData:  s.pageData(r, signupPageTitle),
		Name:      name,
		Email:     emailAddr,
		Error:     errMsg,
		Months:    Months,
		Countries: Countries,
	}
	for day := 1; day <= 31; day++ {
		d.Days = append(d.Days, day)
	}
	for year := time.Now().Year(); year >= 1900; year-- {
		d.Years = append(d.Years, year)
	}
	return d
}

// HandleCreateAccount stores the account, logs it in and redirects to the
// confirmation page.
func (s *Server) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	logger := obs.From(r.Context())
	logger.Debug("create_account_form", "form", logutil.FormatFormForLog(r.PostForm))

	acct, password, err := accountFromForm(r.PostForm, pageAccountFields)
	if err != nil {
		s.render(w, r, http.StatusBadRequest, "signup.html",
			s.signupData(r, r.PostForm.Get("name"), r.PostForm.Get("email"), errs.MessageOf(err)))
		return
	}
	if err := s.createAccount(r, acct, password); err != nil {
		if errs.Is(err, errs.Conflict) {
			s.render(w, r, http.StatusConflict, "login.html", loginData{
				PageData:    s.pageData(r, loginPageTitle),
				SignupError: msgEmailExists,
			})
			return
		}
		s.fail(w, r, err)
		return
	}
	if err := s.startSession(r.Context(), w, acct.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/account_created", http.StatusFound)
}

// createAccount hashes the password, stores the account and sends the
// welcome email. Email failures are logged, not returned.
func (s *Server) createAccount(r *http.Request, acct *db.Account, password string) error {
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return errs.Wrap(errs.Internal, "hash password", err)
	}
	acct.PasswordHash = hash
	if err := s.db.CreateAccount(r.Context(), acct); err != nil {
		return err
	}

	logger := obs.From(r.Context())
	logger.Info("account_created", "account_id", acct.ID, "email", logutil.MaskEmail(acct.Email))
	if err := s.email.Send(acct.Email, email.TemplateWelcome, email.WelcomeData{
		Name:     acct.Name,
		LoginURL: s.absoluteURL(r, "/login"),
	}); err != nil {
		logger.Warn("welcome_email_failed", "error", err)
	}
	return nil
}

// HandleAccountCreated renders the signup confirmation.
func (s *Server) HandleAccountCreated(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "account_created.html", s.pageData(r, siteTitle))
}

// HandleDeleteAccount deletes the logged-in account.
func (s *Server) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	acct := AccountFrom(r.Context())
	if acct == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err := s.deleteAccount(r, acct); err != nil {
		s.fail(w, r, err)
		return
	}
	s.endSession(r.Context(), w, r)

	data := s.pageData(r, siteTitle)
	data.Account = nil
	s.render(w, r, http.StatusOK, "account_deleted.html", data)
}

func (s *Server) deleteAccount(r *http.Request, acct *db.Account) error {
	if err := s.db.DeleteAccount(r.Context(), acct.ID); err != nil {
		return err
	}
	logger := obs.From(r.Context())
	logger.Info("account_deleted", "account_id", acct.ID)
	if err := s.email.Send(acct.Email, email.TemplateGoodbye, email.GoodbyeData{Name: acct.Name}); err != nil {
		logger.Warn("goodbye_email_failed", "error", err)
	}
	return nil
}

// HandleProducts renders the catalog.
func (s *Server) HandleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.db.ListProducts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "products.html", productsData{PageData: s.pageData(r, productPageTitle), Products: products})
}

// HandleProductDetails renders one product.
func (s *Server) HandleProductDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.renderer.RenderError(w, http.StatusNotFound, "This product does not exist")
		return
	}
	p, err := s.db.ProductByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "product_details.html", productDetailsData{
		PageData: s.pageData(r, siteTitle+" - Product Details"),
		Product:  p,
	})
}

// HandleSubscribe records a newsletter subscription.
func (s *Server) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	emailAddr := strings.TrimSpace(r.PostForm.Get("susbscribe_email"))
	if emailAddr == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err := s.db.Subscribe(r.Context(), emailAddr); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.email.Send(emailAddr, email.TemplateSubscribed, email.SubscribedData{ShopURL: s.absoluteURL(r, "/")}); err != nil {
		obs.From(r.Context()).Warn("subscribed_email_failed", "error", err)
	}
	http.Redirect(w, r, "/?subscribed=1", http.StatusFound)
}

// absoluteURL links back to the shop in emails. Without a configured base URL
// the request's own origin is used.
func (s *Server) absoluteURL(r *http.Request, path string) string {
	base := s.baseURL
	if base == "" {
		base = urlutil.OriginFromRequest(r, "")
	}
	return urlutil.BuildAbsolute(base, path)
}
