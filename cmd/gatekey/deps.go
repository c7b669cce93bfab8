// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	"github.com/gatekey/gatekey/internal/auth"
	"github.com/gatekey/gatekey/internal/config"
	"github.com/gatekey/gatekey/internal/mail"
	"github.com/gatekey/gatekey/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader builds the configuration from file, flags, and env.
	// Default: config.Load
	ConfigLoader func(path string, flags *pflag.FlagSet) (*config.Config, error)

	// PoolOpener opens a database connection pool.
	// Default: store.Open
	PoolOpener func(ctx context.Context, dsn string) (*pgxpool.Pool, error)

	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// NotifierFactory creates the email notifier.
	// Default: mail.NewSMTPNotifier
	NotifierFactory func(cfg mail.Config, logger *slog.Logger) (auth.Notifier, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Metrics() *observability.Metrics
	Addr() string
}
