package shop

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/kuitang/shop-e2e/internal/db"
	"github.com/kuitang/shop-e2e/internal/errs"
	"github.com/kuitang/shop-e2e/internal/obs"
)

const (
	SessionCookieName = "sessionid"
	sessionIDLength   = 32 // 256 bits
)

type accountKey struct{}

// optionalAccount attaches the logged-in account, if any, to the request.
func (s *Server) optionalAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		acct, err := s.db.AccountBySession(r.Context(), cookie.Value)
		if err != nil {
			if !errs.Is(err, errs.Unauthenticated) {
				obs.From(r.Context()).Warn("session_lookup_failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acct)))
	})
}

// AccountFrom returns the logged-in account, or nil.
func AccountFrom(ctx context.Context) *db.Account {
	acct, _ := ctx.Value(accountKey{}).(*db.Account)
	return acct
}

func (s *Server) startSession(ctx context.Context, w http.ResponseWriter, accountID string) error {
	token, err := generateSessionID()
	if err != nil {
		return fmt.Errorf("generate session ID: %w", err)
	}
	if err := s.db.CreateSession(ctx, token, accountID, s.sessionTTL); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessionTTL.Seconds()),
	})
	return nil
}

func (s *Server) endSession(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.db.DeleteSession(ctx, cookie.Value); err != nil {
			obs.From(ctx).Warn("session_delete_failed", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func generateSessionID() (string, error) {
	b := make([]byte, sessionIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
