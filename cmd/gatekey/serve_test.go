// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekey/gatekey/internal/auth"
	"github.com/gatekey/gatekey/internal/mail"
)

// stubNotifier satisfies auth.Notifier without touching the network.
type stubNotifier struct{}

func (stubNotifier) SendVerification(context.Context, string, string) error  { return nil }
func (stubNotifier) SendPasswordReset(context.Context, string, string) error { return nil }

func TestServeRejectsIncompleteConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/gatekey_test")
	t.Setenv("GATEKEY_SESSION_SECRET", "secret")

	cmd := NewServeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	// SMTP host deliberately left unset.
	require.NoError(t, cmd.Flags().Parse(nil))

	err := runServeWithDeps(context.Background(), cmd, &ServeDeps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host")
}

func TestServeStartsAndShutsDown(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://gatekey@localhost:5432/gatekey_test")
	t.Setenv("GATEKEY_SESSION_SECRET", "secret")

	cmd := NewServeCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--server.addr", "127.0.0.1:0",
		"--metrics.addr", "",
		"--log.format", "text",
		"--smtp.host", "smtp.example.com",
		"--smtp.username", "mailer@example.com",
		"--smtp.base_url", "https://app.example.com",
	}))

	migrator := &mockMigrator{}
	deps := &ServeDeps{
		// The pool is created lazily, so no database needs to be running.
		PoolOpener: func(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
			return pgxpool.New(ctx, dsn)
		},
		MigratorFactory: func(string) (Migrator, error) { return migrator, nil },
		NotifierFactory: func(mail.Config, *slog.Logger) (auth.Notifier, error) {
			return stubNotifier{}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	err := runServeWithDeps(ctx, cmd, deps)
	require.NoError(t, err)

	assert.True(t, migrator.upCalled, "pending migrations should run on startup")
	assert.True(t, migrator.closeCalled)
	assert.Contains(t, out.String(), "Gatekey started")
}

func TestServeMigrationFailureAborts(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://gatekey@localhost:5432/gatekey_test")
	t.Setenv("GATEKEY_SESSION_SECRET", "secret")

	cmd := NewServeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Flags().Parse([]string{
		"--server.addr", "127.0.0.1:0",
		"--metrics.addr", "",
		"--smtp.host", "smtp.example.com",
		"--smtp.username", "mailer@example.com",
	}))

	migrator := &mockMigrator{upErr: assert.AnError}
	deps := &ServeDeps{
		PoolOpener: func(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
			return pgxpool.New(ctx, dsn)
		},
		MigratorFactory: func(string) (Migrator, error) { return migrator, nil },
		NotifierFactory: func(mail.Config, *slog.Logger) (auth.Notifier, error) {
			return stubNotifier{}, nil
		},
	}

	err := runServeWithDeps(context.Background(), cmd, deps)
	require.Error(t, err)
	assert.True(t, migrator.closeCalled)
}
