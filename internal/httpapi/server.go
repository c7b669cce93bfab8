// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

// Package httpapi exposes the credential lifecycle over a JSON HTTP API.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/gatekey/gatekey/internal/auth"
	"github.com/gatekey/gatekey/internal/observability"
)

// AccountService is the registration and sign-in surface the API serves.
type AccountService interface {
	Register(ctx context.Context, name, email, password string) (*auth.User, error)
	SignIn(ctx context.Context, email, password string) (*auth.SignInResult, error)
}

// TokenService issues and redeems email-verification tokens.
type TokenService interface {
	Request(ctx context.Context, email string) error
	Redeem(ctx context.Context, tokenValue string) error
}

// ResetService issues and redeems password-reset tokens.
type ResetService interface {
	Request(ctx context.Context, email string) error
	Redeem(ctx context.Context, tokenValue, newPassword string) error
}

// Server serves the JSON API.
type Server struct {
	addr          string
	accounts      AccountService
	verifications TokenService
	resets        ResetService
	metrics       *observability.Metrics
	logger        *slog.Logger

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server. metrics may be nil when observability is
// disabled.
func NewServer(
	addr string,
	accounts AccountService,
	verifications TokenService,
	resets ResetService,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Server, error) {
	if accounts == nil {
		return nil, oops.Code("API_BAD_DEPENDENCY").Errorf("account service is required")
	}
	if verifications == nil {
		return nil, oops.Code("API_BAD_DEPENDENCY").Errorf("verification service is required")
	}
	if resets == nil {
		return nil, oops.Code("API_BAD_DEPENDENCY").Errorf("reset service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:          addr,
		accounts:      accounts,
		verifications: verifications,
		resets:        resets,
		metrics:       metrics,
		logger:        logger,
	}, nil
}

// Handler returns the API routes. Exposed for tests and for embedding in a
// larger mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/register", s.instrument("register", s.handleRegister))
	mux.HandleFunc("POST /v1/signin", s.instrument("signin", s.handleSignIn))
	mux.HandleFunc("POST /v1/verify-email", s.instrument("verify_email", s.handleVerifyEmail))
	mux.HandleFunc("POST /v1/verify-email/request", s.instrument("verify_email_request", s.handleVerifyEmailRequest))
	mux.HandleFunc("POST /v1/password-reset/request", s.instrument("password_reset_request", s.handleResetRequest))
	mux.HandleFunc("POST /v1/password-reset/confirm", s.instrument("password_reset_confirm", s.handleResetConfirm))

	return mux
}

// Start begins serving the API. It returns an error channel that receives
// any serve error after startup; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or empty when not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
