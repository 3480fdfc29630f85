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

package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/files"
	"github.com/jeremyhahn/go-passkeyshare/pkg/health"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
	"github.com/jeremyhahn/go-passkeyshare/pkg/metrics"
	"github.com/jeremyhahn/go-passkeyshare/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/session"
	webauthnhttp "github.com/jeremyhahn/go-passkeyshare/pkg/webauthn/http"
)

// Sessions loads, saves and discards the browser session.
// *session.CookieStore satisfies it.
type Sessions interface {
	Load(r *http.Request) (*session.State, error)
	Save(w http.ResponseWriter, st *session.State) error
	Destroy(w http.ResponseWriter)
}

// Identities is the user and credential surface behind the account pages.
// *identity.Resolver satisfies it.
type Identities interface {
	GetUser(ctx context.Context, id string) (*identity.User, error)
	ListAuthenticators(ctx context.Context, userID string) ([]*identity.RegisteredAuthenticator, error)
	DeleteAuthenticator(ctx context.Context, userID, credentialID string) error
	UpdateDisplayName(ctx context.Context, userID, displayName string) (*identity.User, error)
}

// Claims gates, claims and issues invites and shares.
// *claimable.Authorizer satisfies it.
type Claims interface {
	Ensure(ctx context.Context, kind claimable.Kind, id string, current *identity.User) (*claimable.Source, error)
	Claim(ctx context.Context, kind claimable.Kind, id string, by *identity.User) (*claimable.Source, error)
	CreateInvite(ctx context.Context, creator *identity.User, isAdmin bool) (*claimable.Source, error)
	CreateShare(ctx context.Context, creator *identity.User, details claimable.ShareDetails) (*claimable.Source, error)
	List(ctx context.Context, kind claimable.Kind) ([]*claimable.Source, error)
}

var (
	_ Sessions   = (*session.CookieStore)(nil)
	_ Identities = (*identity.Resolver)(nil)
	_ Claims     = (*claimable.Authorizer)(nil)
)

// Paths are the page routes the ceremonies send visitors to.
type Paths struct {
	Register string `yaml:"register" env:"REGISTER"`
	SignIn   string `yaml:"sign_in" env:"SIGN_IN"`
}

// SetDefaults fills unset paths.
func (p *Paths) SetDefaults() {
	if p.Register == "" {
		p.Register = "/register"
	}
	if p.SignIn == "" {
		p.SignIn = "/signin"
	}
}

// Config holds the REST server configuration.
type Config struct {
	// Addr is the listen address (default: ":8080")
	Addr string

	// Ceremonies serves the /fido2 endpoints
	Ceremonies *webauthnhttp.Handler

	Sessions   Sessions
	Identities Identities
	Claims     Claims

	// Files backs share creation and downloads (optional)
	Files files.Provider

	// FilesSource labels download metrics, e.g. "local" or "minio"
	FilesSource string

	// Health runs the readiness checks (optional)
	Health *health.Checker

	// RateLimiter throttles the ceremony endpoints (optional)
	RateLimiter *ratelimit.Limiter

	// Audit receives claim, download and account events (optional)
	Audit audit.AuditAdapter

	// CSRF guards the form POST routes (optional)
	CSRF func(http.Handler) http.Handler

	// CSRFToken returns the token rendered into forms (optional)
	CSRFToken func(r *http.Request) string

	Paths Paths

	// MetricsPath serves Prometheus metrics when non-empty
	MetricsPath string

	// Logger is the logging adapter (optional, defaults to slog at info)
	Logger logger.Logger

	// TLSConfig enables HTTPS (optional)
	TLSConfig *tls.Config

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server serves the ceremony endpoints, the claim pages and the JSON
// admin and account APIs.
type Server struct {
	server      *http.Server
	router      *chi.Mux
	ceremonies  *webauthnhttp.Handler
	sessions    Sessions
	identities  Identities
	claims      Claims
	files       files.Provider
	filesSource string
	health      *health.Checker
	limiter     *ratelimit.Limiter
	audit       audit.AuditAdapter
	csrf        func(http.Handler) http.Handler
	csrfToken   func(r *http.Request) string
	paths       Paths
	metricsPath string
	pages       *renderer
	tlsConfig   *tls.Config
	logger      logger.Logger
}

// NewServer creates a new REST server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Ceremonies == nil {
		return nil, errors.New("ceremony handler is required")
	}
	if cfg.Sessions == nil || cfg.Identities == nil || cfg.Claims == nil {
		return nil, errors.New("sessions, identities and claims are required")
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.FilesSource == "" {
		cfg.FilesSource = "files"
	}
	cfg.Paths.SetDefaults()
	if cfg.Audit == nil {
		cfg.Audit = audit.NoOp{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogAdapter(&logger.SlogConfig{Level: logger.LevelInfo})
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		ceremonies:  cfg.Ceremonies,
		sessions:    cfg.Sessions,
		identities:  cfg.Identities,
		claims:      cfg.Claims,
		files:       cfg.Files,
		filesSource: cfg.FilesSource,
		health:      cfg.Health,
		limiter:     cfg.RateLimiter,
		audit:       cfg.Audit,
		csrf:        cfg.CSRF,
		csrfToken:   cfg.CSRFToken,
		paths:       cfg.Paths,
		metricsPath: cfg.MetricsPath,
		pages:       pages,
		tlsConfig:   cfg.TLSConfig,
		logger:      log,
	}
	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(correlate)
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(SecurityHeadersMiddleware)

	r.Get("/health/live", s.LivenessHandler)
	r.Get("/health/ready", s.ReadinessHandler)
	r.Get("/health/startup", s.StartupHandler)
	if s.metricsPath != "" {
		r.Handle(s.metricsPath, promhttp.Handler())
	}

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS()))))

	r.Group(func(r chi.Router) {
		if s.limiter != nil && s.limiter.IsEnabled() {
			r.Use(ratelimit.Middleware(s.limiter, http.HandlerFunc(s.rateLimited)))
		}
		webauthnhttp.MountChi(r, s.ceremonies)
	})

	r.Get("/", s.IndexHandler)
	r.Get(s.paths.Register, s.RegisterPageHandler)
	r.Get(s.paths.SignIn, s.SignInPageHandler)
	r.Get("/invites/{id}", s.ViewHandler(claimable.KindInvite))
	r.Get("/shares/{id}", s.ViewHandler(claimable.KindShare))
	r.Get("/shares/{id}/download", s.DownloadHandler)

	r.Group(func(r chi.Router) {
		if s.csrf != nil {
			r.Use(s.csrf)
		}
		r.Post("/invites/{id}", s.AcceptHandler(claimable.KindInvite))
		r.Post("/shares/{id}", s.AcceptHandler(claimable.KindShare))
		r.Post("/signout", s.SignOutHandler)
	})

	r.Route("/account", func(r chi.Router) {
		r.Use(s.RequireUser)
		r.Get("/", s.AccountHandler)
		r.Get("/credentials", s.ListCredentialsHandler)
		r.Delete("/credentials/{id}", s.DeleteCredentialHandler)
		r.Put("/display-name", s.UpdateDisplayNameHandler)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.RequireUser, s.RequireAdmin)
		r.Get("/invites", s.ListInvitesHandler)
		r.Post("/invites", s.CreateInviteHandler)
		r.Get("/shares", s.ListSharesHandler)
		r.Post("/shares", s.CreateShareHandler)
		r.Get("/audit", s.AuditEventsHandler)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	if s.health != nil {
		s.health.MarkStarted()
	}

	if s.tlsConfig != nil {
		s.logger.Info("Starting HTTPS server", logger.String("addr", s.server.Addr))
		if err := s.server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info("Starting HTTP server", logger.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	if s.health != nil {
		s.health.MarkNotStarted()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logger.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	metrics.RecordRateLimited(r.URL.Path)
	s.logger.WarnContext(r.Context(), "ceremony rate limited",
		logger.String("path", r.URL.Path),
		logger.String("client", s.limiter.ClientIP(r)))
	w.Header().Set("Retry-After", "60")
	writeJSON(w, webauthnhttp.ErrorResponse{
		Status:       webauthnhttp.StatusFailed,
		ErrorMessage: "Too many requests",
	}, http.StatusTooManyRequests)
}
