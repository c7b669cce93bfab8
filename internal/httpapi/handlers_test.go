// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekey/gatekey/internal/auth"
	"github.com/gatekey/gatekey/internal/observability"
)

// stubAccounts implements AccountService with injectable behavior.
type stubAccounts struct {
	registerFn func(ctx context.Context, name, email, password string) (*auth.User, error)
	signInFn   func(ctx context.Context, email, password string) (*auth.SignInResult, error)
}

func (s *stubAccounts) Register(ctx context.Context, name, email, password string) (*auth.User, error) {
	if s.registerFn == nil {
		return nil, errors.New("unexpected Register call")
	}
	return s.registerFn(ctx, name, email, password)
}

func (s *stubAccounts) SignIn(ctx context.Context, email, password string) (*auth.SignInResult, error) {
	if s.signInFn == nil {
		return nil, errors.New("unexpected SignIn call")
	}
	return s.signInFn(ctx, email, password)
}

// stubTokens implements TokenService with injectable behavior.
type stubTokens struct {
	requestFn      func(ctx context.Context, email string) error
	redeemFn       func(ctx context.Context, tokenValue string) error
	requestedEmail string
}

func (s *stubTokens) Request(ctx context.Context, email string) error {
	s.requestedEmail = email
	if s.requestFn == nil {
		return nil
	}
	return s.requestFn(ctx, email)
}

func (s *stubTokens) Redeem(ctx context.Context, tokenValue string) error {
	if s.redeemFn == nil {
		return errors.New("unexpected Redeem call")
	}
	return s.redeemFn(ctx, tokenValue)
}

type stubResets struct {
	requestFn func(ctx context.Context, email string) error
	redeemFn  func(ctx context.Context, tokenValue, newPassword string) error
}

func (s *stubResets) Request(ctx context.Context, email string) error {
	if s.requestFn == nil {
		return nil
	}
	return s.requestFn(ctx, email)
}

func (s *stubResets) Redeem(ctx context.Context, tokenValue, newPassword string) error {
	if s.redeemFn == nil {
		return errors.New("unexpected Redeem call")
	}
	return s.redeemFn(ctx, tokenValue, newPassword)
}

type apiFixture struct {
	server   *Server
	accounts *stubAccounts
	tokens   *stubTokens
	resets   *stubResets
	metrics  *observability.Metrics
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	accounts := &stubAccounts{}
	tokens := &stubTokens{}
	resets := &stubResets{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server, err := NewServer("127.0.0.1:0", accounts, tokens, resets, metrics, logger)
	require.NoError(t, err)

	return &apiFixture{
		server:   server,
		accounts: accounts,
		tokens:   tokens,
		resets:   resets,
		metrics:  metrics,
	}
}

func (f *apiFixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func verifiedUser(email string) *auth.User {
	now := time.Now()
	return &auth.User{
		ID:           ulid.Make(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$argon2id$hash",
		VerifiedAt:   &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func pendingUser(email string) *auth.User {
	u := verifiedUser(email)
	u.VerifiedAt = nil
	return u
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	accounts := &stubAccounts{}
	tokens := &stubTokens{}
	resets := &stubResets{}

	tests := []struct {
		name          string
		accounts      AccountService
		verifications TokenService
		resets        ResetService
		wantErr       string
	}{
		{"nil accounts", nil, tokens, resets, "account service is required"},
		{"nil verifications", accounts, nil, resets, "verification service is required"},
		{"nil resets", accounts, tokens, nil, "reset service is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServer(":0", tt.accounts, tt.verifications, tt.resets, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHandleRegister(t *testing.T) {
	t.Run("creates an account", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.registerFn = func(_ context.Context, name, email, _ string) (*auth.User, error) {
			require.Equal(t, "Alice", name)
			require.Equal(t, "alice@example.com", email)
			return pendingUser("alice@example.com"), nil
		}

		rec := f.post(t, "/v1/register", `{"name":"Alice","email":"alice@example.com","password":"secret1"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "confirmation email sent", body["message"])
		user := body["user"].(map[string]any)
		assert.Equal(t, "alice@example.com", user["email"])
		assert.Equal(t, false, user["verified"])
		assert.NotEmpty(t, user["id"])
	})

	t.Run("validation failure returns field errors", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.registerFn = func(context.Context, string, string, string) (*auth.User, error) {
			return nil, auth.FieldErrors{"email": "must be a valid address", "password": "too short"}
		}

		rec := f.post(t, "/v1/register", `{"name":"","email":"nope","password":"x"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "validation failed", body["error"])
		fields := body["fields"].(map[string]any)
		assert.Equal(t, "too short", fields["password"])
	})

	t.Run("duplicate email returns conflict", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.registerFn = func(context.Context, string, string, string) (*auth.User, error) {
			return nil, auth.ErrEmailTaken
		}

		rec := f.post(t, "/v1/register", `{"name":"Alice","email":"taken@example.com","password":"secret1"}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "email already registered", decodeBody(t, rec)["error"])
	})

	t.Run("account created despite failed delivery", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.registerFn = func(context.Context, string, string, string) (*auth.User, error) {
			return pendingUser("alice@example.com"), auth.ErrNotificationFailed
		}

		rec := f.post(t, "/v1/register", `{"name":"Alice","email":"alice@example.com","password":"secret1"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Contains(t, body["message"], "could not be delivered")
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.post(t, "/v1/register", `{"name":`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid request body", decodeBody(t, rec)["error"])
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.post(t, "/v1/register", `{"name":"Alice","email":"a@example.com","password":"secret1","admin":true}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleSignIn(t *testing.T) {
	t.Run("authorized sign-in returns a session", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.signInFn = func(_ context.Context, email, password string) (*auth.SignInResult, error) {
			require.Equal(t, "alice@example.com", email)
			require.Equal(t, "secret1", password)
			return &auth.SignInResult{
				Outcome: auth.OutcomeAuthorized,
				User:    verifiedUser(email),
				Session: "signed.jwt.token",
			}, nil
		}

		rec := f.post(t, "/v1/signin", `{"email":"alice@example.com","password":"secret1"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "signed.jwt.token", body["session"])
		user := body["user"].(map[string]any)
		assert.Equal(t, true, user["verified"])
	})

	t.Run("unverified email gets a fresh confirmation", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.signInFn = func(_ context.Context, email, _ string) (*auth.SignInResult, error) {
			return &auth.SignInResult{
				Outcome: auth.OutcomeVerificationRequired,
				User:    pendingUser(email),
			}, nil
		}

		rec := f.post(t, "/v1/signin", `{"email":"alice@example.com","password":"secret1"}`)

		require.Equal(t, http.StatusAccepted, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "confirmation email sent", body["message"])
		assert.NotContains(t, body, "session")
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.signInFn = func(context.Context, string, string) (*auth.SignInResult, error) {
			return nil, auth.ErrUserNotFound
		}

		rec := f.post(t, "/v1/signin", `{"email":"ghost@example.com","password":"secret1"}`)

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "unknown email", decodeBody(t, rec)["error"])
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.signInFn = func(context.Context, string, string) (*auth.SignInResult, error) {
			return nil, auth.ErrInvalidCredentials
		}

		rec := f.post(t, "/v1/signin", `{"email":"alice@example.com","password":"wrong"}`)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid credentials", decodeBody(t, rec)["error"])
	})

	t.Run("internal failures are not leaked", func(t *testing.T) {
		f := newAPIFixture(t)
		f.accounts.signInFn = func(context.Context, string, string) (*auth.SignInResult, error) {
			return nil, errors.New("pool exhausted: dsn=postgres://gatekey:hunter2@db/gatekey")
		}

		rec := f.post(t, "/v1/signin", `{"email":"alice@example.com","password":"secret1"}`)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal error", decodeBody(t, rec)["error"])
		assert.NotContains(t, rec.Body.String(), "hunter2")
	})
}

func TestHandleVerifyEmail(t *testing.T) {
	t.Run("redeems a token", func(t *testing.T) {
		f := newAPIFixture(t)
		f.tokens.redeemFn = func(_ context.Context, tokenValue string) error {
			require.Equal(t, "abc123", tokenValue)
			return nil
		}

		rec := f.post(t, "/v1/verify-email", `{"token":"abc123"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "email verified", decodeBody(t, rec)["message"])
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAPIFixture(t)
		f.tokens.redeemFn = func(context.Context, string) error { return auth.ErrTokenExpired }

		rec := f.post(t, "/v1/verify-email", `{"token":"stale"}`)

		require.Equal(t, http.StatusGone, rec.Code)
		assert.Equal(t, "token expired", decodeBody(t, rec)["error"])
	})

	t.Run("unknown or already used token", func(t *testing.T) {
		f := newAPIFixture(t)
		f.tokens.redeemFn = func(context.Context, string) error { return auth.ErrTokenNotFound }

		rec := f.post(t, "/v1/verify-email", `{"token":"used"}`)

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "invalid or already used token", decodeBody(t, rec)["error"])
	})
}

func TestHandleVerifyEmailRequest(t *testing.T) {
	t.Run("issues a new token", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.post(t, "/v1/verify-email/request", `{"email":"alice@example.com"}`)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "alice@example.com", f.tokens.requestedEmail)
		assert.Equal(t, "confirmation email sent", decodeBody(t, rec)["message"])
	})

	t.Run("already verified", func(t *testing.T) {
		f := newAPIFixture(t)
		f.tokens.requestFn = func(context.Context, string) error { return auth.ErrAlreadyVerified }

		rec := f.post(t, "/v1/verify-email/request", `{"email":"alice@example.com"}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "email already verified", decodeBody(t, rec)["error"])
	})

	t.Run("delivery failure", func(t *testing.T) {
		f := newAPIFixture(t)
		f.tokens.requestFn = func(context.Context, string) error { return auth.ErrNotificationFailed }

		rec := f.post(t, "/v1/verify-email/request", `{"email":"alice@example.com"}`)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "email delivery failed", decodeBody(t, rec)["error"])
	})
}

func TestHandleResetRequest(t *testing.T) {
	t.Run("issues a reset token", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.post(t, "/v1/password-reset/request", `{"email":"alice@example.com"}`)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "reset email sent", decodeBody(t, rec)["message"])
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newAPIFixture(t)
		f.resets.requestFn = func(context.Context, string) error { return auth.ErrUserNotFound }

		rec := f.post(t, "/v1/password-reset/request", `{"email":"ghost@example.com"}`)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleResetConfirm(t *testing.T) {
	t.Run("updates the password", func(t *testing.T) {
		f := newAPIFixture(t)
		f.resets.redeemFn = func(_ context.Context, tokenValue, newPassword string) error {
			require.Equal(t, "abc123", tokenValue)
			require.Equal(t, "new-secret", newPassword)
			return nil
		}

		rec := f.post(t, "/v1/password-reset/confirm", `{"token":"abc123","new_password":"new-secret"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "password updated", decodeBody(t, rec)["message"])
	})

	t.Run("weak replacement password", func(t *testing.T) {
		f := newAPIFixture(t)
		f.resets.redeemFn = func(context.Context, string, string) error {
			return auth.FieldErrors{"password": "must be at least 6 characters"}
		}

		rec := f.post(t, "/v1/password-reset/confirm", `{"token":"abc123","new_password":"x"}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "validation failed", body["error"])
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAPIFixture(t)
		f.resets.redeemFn = func(context.Context, string, string) error { return auth.ErrTokenExpired }

		rec := f.post(t, "/v1/password-reset/confirm", `{"token":"stale","new_password":"new-secret"}`)

		require.Equal(t, http.StatusGone, rec.Code)
	})
}

func TestRouting_MethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/register", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsRecorded(t *testing.T) {
	f := newAPIFixture(t)
	f.accounts.registerFn = func(_ context.Context, _, email, _ string) (*auth.User, error) {
		return pendingUser(email), nil
	}
	f.tokens.redeemFn = func(context.Context, string) error { return auth.ErrTokenExpired }

	f.post(t, "/v1/register", `{"name":"Alice","email":"alice@example.com","password":"secret1"}`)
	f.post(t, "/v1/verify-email", `{"token":"stale"}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RegistrationsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokensRedeemedTotal.WithLabelValues("verification", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("register", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("verify_email", "410")))
}
