package token

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// CookieSettings control the cookies written by the cookie backend.
type CookieSettings struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Domain     string
	Secure     bool
}

// CookieProvider keeps token pairs directly in browser cookies: the access
// token under a short-lived cookie, the refresh token under a long-lived one.
// Both are HttpOnly and SameSite=Strict so they never reach page scripts.
type CookieProvider struct {
	settings CookieSettings
}

// NewCookieProvider creates a cookie-backed token provider.
func NewCookieProvider(settings CookieSettings) *CookieProvider {
	return &CookieProvider{settings: settings}
}

func (p *CookieProvider) ForRequest(w http.ResponseWriter, r *http.Request) Store {
	return &cookieStore{
		settings: p.settings,
		w:        w,
		r:        r,
	}
}

// cookieStore serves one request/response exchange. Writes are mirrored into
// an in-request override so that reads issued after a mid-request refresh see
// the new pair, not the stale request cookies.
type cookieStore struct {
	settings CookieSettings
	w        http.ResponseWriter
	r        *http.Request

	mu       sync.Mutex
	override *Pair
	cleared  bool
}

func (s *cookieStore) Tokens(_ context.Context) Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cleared {
		return Pair{}
	}
	if s.override != nil {
		return *s.override
	}

	var pair Pair
	if c, err := s.r.Cookie(AccessCookieName); err == nil {
		pair.AccessToken = c.Value
	}
	if c, err := s.r.Cookie(RefreshCookieName); err == nil {
		pair.RefreshToken = c.Value
	}
	return pair
}

func (s *cookieStore) Set(_ context.Context, pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.override = &pair
	s.cleared = false

	s.write(AccessCookieName, pair.AccessToken, s.settings.AccessTTL)
	s.write(RefreshCookieName, pair.RefreshToken, s.settings.RefreshTTL)
	return nil
}

func (s *cookieStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.override = nil
	s.cleared = true

	s.expire(AccessCookieName)
	s.expire(RefreshCookieName)
	return nil
}

func (s *cookieStore) write(name, value string, ttl time.Duration) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.settings.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.settings.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *cookieStore) expire(name string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   s.settings.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.settings.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
