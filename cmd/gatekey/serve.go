// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatekey/gatekey/internal/auth"
	"github.com/gatekey/gatekey/internal/auth/postgres"
	"github.com/gatekey/gatekey/internal/config"
	"github.com/gatekey/gatekey/internal/httpapi"
	"github.com/gatekey/gatekey/internal/logging"
	"github.com/gatekey/gatekey/internal/mail"
	"github.com/gatekey/gatekey/internal/observability"
	"github.com/gatekey/gatekey/internal/session"
	"github.com/gatekey/gatekey/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the credential lifecycle API server",
		Long: `Start the HTTP server that handles registration, email verification,
password resets, and sign-in. Pending migrations are applied on startup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	flags := cmd.Flags()
	flags.String("server.addr", "127.0.0.1:8080", "API listen address")
	flags.String("metrics.addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	flags.String("log.format", "json", "log format (json or text)")
	flags.String("session.issuer", "gatekey", "JWT issuer claim")
	flags.Duration("session.ttl", 24*time.Hour, "session lifetime")
	flags.String("smtp.host", "", "SMTP server host")
	flags.Int("smtp.port", 587, "SMTP server port")
	flags.String("smtp.username", "", "SMTP username")
	flags.String("smtp.from", "", "sender address (defaults to smtp.username)")
	flags.String("smtp.base_url", "", "public base URL used in emailed links")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.PoolOpener == nil {
		deps.PoolOpener = store.Open
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if deps.NotifierFactory == nil {
		deps.NotifierFactory = func(cfg mail.Config, logger *slog.Logger) (auth.Notifier, error) {
			return mail.NewSMTPNotifier(cfg, logger)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("gatekey", version, cfg.Log.Format)
	logger := slog.Default()

	slog.Info("starting gatekey",
		"server_addr", cfg.Server.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := deps.PoolOpener(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("connected to database")

	// Apply pending migrations before accepting requests.
	migrator, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return err
	}
	if err := migrator.Close(); err != nil {
		slog.Warn("error closing migrator", "error", err)
	}

	users := postgres.NewUserRepository(pool)
	verificationTokens := postgres.NewVerificationTokenRepository(pool)
	resetTokens := postgres.NewPasswordResetTokenRepository(pool)
	tx := postgres.NewTransactor(pool)

	notifier, err := deps.NotifierFactory(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		BaseURL:  cfg.SMTP.BaseURL,
	}, logger)
	if err != nil {
		return err
	}

	issuer, err := session.NewJWTIssuer([]byte(cfg.Session.Secret), cfg.Session.Issuer, cfg.Session.TTL)
	if err != nil {
		return err
	}

	hasher := auth.NewArgon2idHasher()

	verifications, err := auth.NewVerificationServiceWithLogger(users, verificationTokens, notifier, tx, logger)
	if err != nil {
		return err
	}
	resets, err := auth.NewPasswordResetServiceWithLogger(users, resetTokens, hasher, notifier, tx, logger)
	if err != nil {
		return err
	}
	accounts, err := auth.NewAccountServiceWithLogger(users, hasher, verifications, issuer, logger)
	if err != nil {
		return err
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrCh, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	stopObservability := func() {
		if obsServer == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			slog.Warn("error stopping observability server", "error", stopErr)
		}
	}

	api, err := httpapi.NewServer(cfg.Server.Addr, accounts, verifications, resets, metrics, logger)
	if err != nil {
		stopObservability()
		return err
	}
	apiErrCh, err := api.Start()
	if err != nil {
		stopObservability()
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	cmd.Println("Gatekey started")
	slog.Info("gatekey ready", "api_addr", api.Addr())

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := api.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	stopObservability()

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error so a server failure triggers graceful shutdown of the
// whole process. It exits when an error is received, the channel is closed,
// or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
