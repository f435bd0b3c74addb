// demoshop serves a local copy of the Automation Exercise storefront for the
// browser suite.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/shop-e2e/internal/config"
	"github.com/kuitang/shop-e2e/internal/db"
	"github.com/kuitang/shop-e2e/internal/email"
	"github.com/kuitang/shop-e2e/internal/obs"
	"github.com/kuitang/shop-e2e/internal/ratelimit"
	"github.com/kuitang/shop-e2e/internal/shop"
)

const (
	shutdownTimeout     = 10 * time.Second
	sessionJanitorEvery = 10 * time.Minute
	readHeaderTimeout   = 10 * time.Second
)

func main() {
	obs.Init()
	logger := obs.Pkg("main")

	cfg := config.MustLoadShop(config.ParseShopFlags())
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	cfg.PrintStartupSummary()

	if err := run(cfg); err != nil {
		logger.Error("demoshop_exit", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Shop) error {
	logger := obs.Pkg("main")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DatabasePath, cfg.DatabaseKey)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := shop.SeedCatalog(ctx, store); err != nil {
		return err
	}

	var mailer email.EmailService
	if cfg.NoEmail {
		mailer = email.NewMockEmailService()
	} else {
		mailer = email.NewResendEmailService(cfg.ResendAPIKey, cfg.ResendFromEmail)
	}

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	s, err := shop.New(shop.Deps{
		DB:         store,
		Hasher:     shop.BcryptHasher{},
		Email:      mailer,
		Limiter:    limiter,
		BaseURL:    cfg.BaseURL,
		SessionTTL: cfg.SessionDuration,
	})
	if err != nil {
		return err
	}
	go s.RunSessionJanitor(ctx, sessionJanitorEvery)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	logger.Info("server_ready", "addr", ln.Addr().String(), "base_url", cfg.BaseURL)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
