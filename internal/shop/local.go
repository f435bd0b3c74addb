package shop

import (
	"context"
	"fmt"
	"net/http/httptest"

	"golang.org/x/crypto/bcrypt"

	"github.com/kuitang/shop-e2e/internal/db"
	"github.com/kuitang/shop-e2e/internal/email"
	"github.com/kuitang/shop-e2e/internal/ratelimit"
)

// LocalOptions tunes StartLocal. The zero value is ready to use.
type LocalOptions struct {
	Hasher  PasswordHasher         // defaults to bcrypt at MinCost
	Limiter *ratelimit.RateLimiter // nil disables API rate limiting
}

// Local is a shop on a loopback listener backed by an in-memory database
// and a mock mailer. Tests use it in place of the public site.
type Local struct {
	Server *httptest.Server
	Shop   *Server
	DB     *db.DB
	Email  *email.MockEmailService
}

// StartLocal starts a seeded shop on 127.0.0.1.
func StartLocal(opts LocalOptions) (*Local, error) {
	store, err := db.Open(db.MemoryPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open shop database: %w", err)
	}
	if err := SeedCatalog(context.Background(), store); err != nil {
		store.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	if opts.Hasher == nil {
		opts.Hasher = BcryptHasher{Cost: bcrypt.MinCost}
	}

	ts := httptest.NewUnstartedServer(nil)
	mailer := email.NewMockEmailService()
	s, err := New(Deps{
		DB:      store,
		Hasher:  opts.Hasher,
		Email:   mailer,
		Limiter: opts.Limiter,
		BaseURL: "http://" + ts.Listener.Addr().String(),
	})
	if err != nil {
		ts.Close()
		store.Close()
		return nil, err
	}
	ts.Config.Handler = s.Handler()
	ts.Start()

	return &Local{Server: ts, Shop: s, DB: store, Email: mailer}, nil
}

// URL returns the shop's base URL without a trailing slash.
func (l *Local) URL() string {
	return l.Server.URL
}

// Close stops the listener and closes the database.
func (l *Local) Close() {
	l.Server.Close()
	_ = l.DB.Close()
}
