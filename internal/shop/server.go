// Package shop is a local stand-in for the Automation Exercise storefront.
// It serves the pages and JSON API the browser suite drives, with the same
// data-qa selectors and messages as the public site.
package shop

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kuitang/shop-e2e/internal/db"
	"github.com/kuitang/shop-e2e/internal/email"
	"github.com/kuitang/shop-e2e/internal/obs"
	"github.com/kuitang/shop-e2e/internal/ratelimit"
)

// DefaultSessionDuration is used when Deps.SessionTTL is zero.
const DefaultSessionDuration = 24 * time.Hour

// Deps are the collaborators a Server is built from.
type Deps struct {
	DB      *db.DB
	Hasher  PasswordHasher
	Email   email.EmailService
	Limiter *ratelimit.RateLimiter // nil disables API rate limiting
	BaseURL string
	// SessionTTL bounds a login. Zero means DefaultSessionDuration.
	SessionTTL time.Duration
}

// Server serves the storefront pages and API.
type Server struct {
	db            *db.DB
	hasher        PasswordHasher
	email         email.EmailService
	limiter       *ratelimit.RateLimiter
	renderer      *Renderer
	baseURL       string
	sessionTTL    time.Duration
	secureCookies bool
}

// New builds a Server. DB and Email are required; a nil Hasher means bcrypt.
func New(d Deps) (*Server, error) {
	if d.DB == nil {
		return nil, errors.New("shop: database is required")
	}
	if d.Email == nil {
		return nil, errors.New("shop: email service is required")
	}
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if d.Hasher == nil {
		d.Hasher = BcryptHasher{}
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = DefaultSessionDuration
	}
	baseURL := strings.TrimRight(d.BaseURL, "/")
	return &Server{
		db:            d.DB,
		hasher:        d.Hasher,
		email:         d.Email,
		limiter:       d.Limiter,
		renderer:      renderer,
		baseURL:       baseURL,
		sessionTTL:    d.SessionTTL,
		secureCookies: strings.HasPrefix(baseURL, "https://"),
	}, nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	api := http.NewServeMux()
	s.RegisterAPIRoutes(api)
	var apiHandler http.Handler = api
	if s.limiter != nil {
		apiHandler = ratelimit.Middleware(s.limiter, obs.ClientAddr)(api)
	}
	mux.Handle("/api/", apiHandler)

	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("shop", s.optionalAccount(mux)))
}

// RegisterRoutes registers the HTML pages on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.HandleHome)
	mux.HandleFunc("GET /login", s.HandleLoginPage)
	mux.HandleFunc("POST /login", s.HandleLogin)
	mux.HandleFunc("GET /logout", s.HandleLogout)
	mux.HandleFunc("POST /signup", s.HandleSignup)
	mux.HandleFunc("POST /create_account", s.HandleCreateAccount)
	mux.HandleFunc("GET /account_created", s.HandleAccountCreated)
	mux.HandleFunc("GET /delete_account", s.HandleDeleteAccount)
	mux.HandleFunc("GET /products", s.HandleProducts)
	mux.HandleFunc("GET /product_details/{id}", s.HandleProductDetails)
	mux.HandleFunc("POST /subscribe", s.HandleSubscribe)
}

// RegisterAPIRoutes registers the JSON API on mux.
func (s *Server) RegisterAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/productsList", s.APIProductsList)
	mux.HandleFunc("POST /api/productsList", s.APIMethodNotSupported)
	mux.HandleFunc("GET /api/brandsList", s.APIBrandsList)
	mux.HandleFunc("PUT /api/brandsList", s.APIMethodNotSupported)
	mux.HandleFunc("GET /api/productDetails/{id}", s.APIProductDetails)
	mux.HandleFunc("POST /api/searchProduct", s.APISearchProduct)
	mux.HandleFunc("POST /api/verifyLogin", s.APIVerifyLogin)
	mux.HandleFunc("DELETE /api/verifyLogin", s.APIMethodNotSupported)
	mux.HandleFunc("POST /api/createAccount", s.APICreateAccount)
	mux.HandleFunc("DELETE /api/deleteAccount", s.APIDeleteAccount)
	mux.HandleFunc("GET /api/getUserDetailByEmail", s.APIGetUserDetailByEmail)
}

// RunSessionJanitor drops expired sessions every interval until ctx ends.
func (s *Server) RunSessionJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger := obs.Pkg("shop")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.db.DeleteExpiredSessions(ctx)
			if err != nil {
				logger.Warn("session_cleanup_failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("session_cleanup", "dropped", n)
			}
		}
	}
}
