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

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkeyshare/internal/config"
	"github.com/jeremyhahn/go-passkeyshare/internal/rest"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/health"
	"github.com/jeremyhahn/go-passkeyshare/pkg/metrics"
	"github.com/jeremyhahn/go-passkeyshare/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/session"
	"github.com/jeremyhahn/go-passkeyshare/pkg/webauthn"
	webauthnhttp "github.com/jeremyhahn/go-passkeyshare/pkg/webauthn/http"
)

func newServeCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Run the web server until SIGINT or SIGTERM, then drain in-flight
requests for up to server.shutdown_timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log := logger.NewSlogAdapter(cfg.LoggerConfig())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// stack is a fully wired server and the resources it holds.
type stack struct {
	app     *app
	server  *rest.Server
	limiter *ratelimit.Limiter
}

func (s *stack) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.app.Close()
}

func newStack(ctx context.Context, cfg *config.Config, log logger.Logger) (*stack, error) {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	st := &stack{app: a}
	fail := func(err error) (*stack, error) {
		_ = st.Close()
		return nil, err
	}

	svc, err := webauthn.NewService(webauthn.ServiceParams{
		Config:     &cfg.WebAuthn,
		Identities: a.identities,
		Claims:     a.authorizer,
		Logger:     log,
	})
	if err != nil {
		return fail(err)
	}
	cookies, err := session.NewCookieStore(cfg.Session)
	if err != nil {
		return fail(err)
	}

	checker := health.NewChecker()
	checker.RegisterCheck("store", health.PingCheck("store", a.kv))
	if a.files != nil {
		checker.RegisterCheck("files", health.PingCheck("files", a.files))
	}

	if cfg.RateLimit.Enabled {
		st.limiter = ratelimit.New(&cfg.RateLimit)
	}

	tlsConfig, err := cfg.Server.TLS.Load()
	if err != nil {
		return fail(err)
	}

	restCfg := &rest.Config{
		Addr:         cfg.Server.Addr,
		Ceremonies:   webauthnhttp.NewHandler(svc, cookies, webauthnhttp.WithLogger(log)),
		Sessions:     cookies,
		Identities:   a.identities,
		Claims:       a.authorizer,
		Files:        a.files,
		FilesSource:  cfg.Files.Provider,
		Health:       checker,
		RateLimiter:  st.limiter,
		Paths:        cfg.Paths,
		Audit:        audit.NewMemoryAuditAdapter(audit.DefaultCapacity),
		Logger:       log,
		TLSConfig:    tlsConfig,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if cfg.Metrics.Enabled {
		restCfg.MetricsPath = cfg.Metrics.Path
	}

	st.server, err = rest.NewServer(restCfg)
	if err != nil {
		return fail(err)
	}
	return st, nil
}

// serve runs the server until ctx is cancelled or the listener fails.
func serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	st, err := newStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(15*time.Second,
			metrics.WithOpenCounter(st.app.authorizer.CountOpen),
			metrics.WithErrorHandler(func(err error) {
				log.Warn("metrics sample failed", logger.Error(err))
			}))
		go collector.Run(ctx)
		defer collector.Stop()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- st.server.Start() }()

	log.Info("passkeyshare started",
		logger.String("addr", st.server.Addr()),
		logger.String("rp_id", cfg.WebAuthn.RPID),
		logger.String("storage", cfg.Storage.Backend),
		logger.String("files", cfg.Files.Provider),
		logger.String("version", Version))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := st.server.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}
