// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeyshare.
//
// go-passkeyshare is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultCookieName is the session cookie name.
	DefaultCookieName = "passkeyshare_session"

	// DefaultLifetime is how long an idle session lasts.
	DefaultLifetime = 24 * time.Hour

	// MinSecretLength is the shortest accepted signing secret in bytes.
	MinSecretLength = 32

	issuer = "passkeyshare"
)

// Config configures the session cookie.
type Config struct {
	Secret     string        `yaml:"secret" env:"SECRET"`
	CookieName string        `yaml:"cookie_name" env:"COOKIE_NAME"`
	Lifetime   time.Duration `yaml:"lifetime" env:"LIFETIME"`
	Secure     bool          `yaml:"secure" env:"SECURE"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.Lifetime == 0 {
		c.Lifetime = DefaultLifetime
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if c.Lifetime < 0 {
		return errors.New("session lifetime must not be negative")
	}
	if strings.ContainsAny(c.CookieName, " ;,=\t\r\n") {
		return fmt.Errorf("invalid session cookie name %q", c.CookieName)
	}
	return nil
}

// claims is the signed cookie payload.
type claims struct {
	jwt.RegisteredClaims
	State wireState `json:"st"`
}

// CookieStore keeps State in an HMAC-signed cookie. Nothing is kept on the
// server, so a copied cookie stays valid until it expires.
type CookieStore struct {
	secret   []byte
	name     string
	lifetime time.Duration
	secure   bool
	now      func() time.Time
}

// NewCookieStore creates a CookieStore from cfg after applying defaults.
func NewCookieStore(cfg Config) (*CookieStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CookieStore{
		secret:   []byte(cfg.Secret),
		name:     cfg.CookieName,
		lifetime: cfg.Lifetime,
		secure:   cfg.Secure,
		now:      time.Now,
	}, nil
}

// Name returns the cookie name.
func (s *CookieStore) Name() string {
	return s.name
}

// Load reads the session from r. A missing cookie yields an empty State
// and no error. An unreadable one yields an empty State and the reason.
func (s *CookieStore) Load(r *http.Request) (*State, error) {
	cookie, err := r.Cookie(s.name)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return New(), nil
	}
	st, err := s.Decode(cookie.Value)
	if err != nil {
		return New(), err
	}
	return st, nil
}

// Save writes st to the response, or clears the cookie when st is empty.
// It must run before the response body is written.
func (s *CookieStore) Save(w http.ResponseWriter, st *State) error {
	if st == nil || st.IsEmpty() {
		s.Destroy(w)
		return nil
	}
	value, err := s.Encode(st)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.lifetime / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy expires the session cookie.
func (s *CookieStore) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Encode signs st into a token.
func (s *CookieStore) Encode(st *State) (string, error) {
	w, err := st.encode()
	if err != nil {
		return "", err
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
		State: w,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Decode verifies a token and runs each state kind through its decode step.
func (s *CookieStore) Decode(value string) (*State, error) {
	var c claims
	_, err := jwt.ParseWithClaims(value, &c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return decode(c.State)
}
