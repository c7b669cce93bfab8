// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekey/gatekey/internal/auth"
)

func startFixtureServer(t *testing.T) (*apiFixture, *http.Client) {
	t.Helper()

	f := newAPIFixture(t)
	_, err := f.server.Start()
	require.NoError(t, err)

	transport := &http.Transport{}
	client := &http.Client{Transport: transport, Timeout: 5 * time.Second}

	t.Cleanup(func() {
		transport.CloseIdleConnections()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.server.Stop(ctx)
	})

	return f, client
}

func TestServer_ServesOverTCP(t *testing.T) {
	f, client := startFixtureServer(t)
	f.accounts.signInFn = func(_ context.Context, email, _ string) (*auth.SignInResult, error) {
		return &auth.SignInResult{
			Outcome: auth.OutcomeAuthorized,
			User:    verifiedUser(email),
			Session: "signed.jwt.token",
		}, nil
	}

	addr := f.server.Addr()
	require.NotEmpty(t, addr)

	resp, err := client.Post(
		"http://"+addr+"/v1/signin",
		"application/json",
		strings.NewReader(`{"email":"alice@example.com","password":"secret1"}`),
	)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestServer_DoubleStartFails(t *testing.T) {
	f, _ := startFixtureServer(t)

	_, err := f.server.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServer_StopIdempotent(t *testing.T) {
	f := newAPIFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, f.server.Stop(ctx))
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	f := newAPIFixture(t)

	errCh, err := f.server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.server.Stop(ctx))

	select {
	case serveErr, ok := <-errCh:
		if ok {
			assert.NoError(t, serveErr)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
