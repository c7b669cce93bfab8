// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/samber/oops"

	"github.com/gatekey/gatekey/internal/auth"
	"github.com/gatekey/gatekey/pkg/errutil"
)

// Request size limit. Credential payloads are tiny; anything larger is
// malformed or hostile.
const maxBodyBytes = 16 << 10

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type signInResponse struct {
	Session string       `json:"session,omitempty"`
	User    userResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func toUserResponse(user *auth.User) userResponse {
	return userResponse{
		ID:       user.ID.String(),
		Name:     user.Name,
		Email:    user.Email,
		Verified: user.IsVerified(),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil && user == nil {
		s.recordRegistration(err)
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		// Account created but the verification email did not go out. The
		// caller can retry via the resend endpoint; the latest token wins.
		s.recordRegistration(nil)
		s.writeJSON(w, http.StatusCreated, signInResponse{
			User:    toUserResponse(user),
			Message: "account created; verification email could not be delivered, request a new one",
		})
		return
	}

	s.recordRegistration(nil)
	s.writeJSON(w, http.StatusCreated, signInResponse{
		User:    toUserResponse(user),
		Message: "confirmation email sent",
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.recordSignIn(err)
		s.writeError(w, r, err)
		return
	}

	switch result.Outcome {
	case auth.OutcomeVerificationRequired:
		if s.metrics != nil {
			s.metrics.SignInsTotal.WithLabelValues("verification_required").Inc()
		}
		// Credentials passed but the email is unverified; a fresh token is
		// already on its way.
		s.writeJSON(w, http.StatusAccepted, signInResponse{
			User:    toUserResponse(result.User),
			Message: "confirmation email sent",
		})
	default:
		if s.metrics != nil {
			s.metrics.SignInsTotal.WithLabelValues("authorized").Inc()
		}
		s.writeJSON(w, http.StatusOK, signInResponse{
			Session: result.Session,
			User:    toUserResponse(result.User),
		})
	}
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.verifications.Redeem(r.Context(), req.Token)
	s.recordRedemption("verification", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "email verified"})
}

func (s *Server) handleVerifyEmailRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.verifications.Request(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.WithLabelValues("verification").Inc()
	}
	s.writeJSON(w, http.StatusAccepted, messageResponse{Message: "confirmation email sent"})
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.resets.Request(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.WithLabelValues("password_reset").Inc()
	}
	s.writeJSON(w, http.StatusAccepted, messageResponse{Message: "reset email sent"})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.resets.Redeem(r.Context(), req.Token, req.NewPassword)
	s.recordRedemption("password_reset", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

// decode reads a JSON request body. On failure it writes a 400 response and
// returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps domain errors to HTTP statuses. Internal details never
// reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe auth.FieldErrors
	switch {
	case errors.As(err, &fe):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fe})
	case errors.Is(err, auth.ErrEmailTaken):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "email already registered"})
	case errors.Is(err, auth.ErrAlreadyVerified):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "email already verified"})
	case errors.Is(err, auth.ErrUserNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown email"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, auth.ErrTokenExpired):
		s.writeJSON(w, http.StatusGone, errorResponse{Error: "token expired"})
	case errors.Is(err, auth.ErrTokenNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "invalid or already used token"})
	case errors.Is(err, auth.ErrNotificationFailed):
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "email delivery failed"})
	case isValidationError(err):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		errutil.LogError(s.logger, "request failed", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response write failed", "error", err)
	}
}

// instrument wraps a handler with request logging and metrics.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		if s.metrics != nil {
			s.metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
		s.logger.Debug("request handled",
			"route", route,
			"status", rec.status,
		)
	}
}

// isValidationError reports whether err carries the shared validation code
// used by the email and password checks.
func isValidationError(err error) bool {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Code() == "AUTH_VALIDATION_FAILED"
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) recordRegistration(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	case errors.Is(err, auth.ErrEmailTaken):
		s.metrics.RegistrationsTotal.WithLabelValues("email_taken").Inc()
	default:
		s.metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
	}
}

func (s *Server) recordSignIn(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		s.metrics.SignInsTotal.WithLabelValues("user_not_found").Inc()
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.metrics.SignInsTotal.WithLabelValues("invalid_credentials").Inc()
	default:
		s.metrics.SignInsTotal.WithLabelValues("error").Inc()
	}
}

func (s *Server) recordRedemption(kind string, err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.TokensRedeemedTotal.WithLabelValues(kind, "redeemed").Inc()
	case errors.Is(err, auth.ErrTokenExpired):
		s.metrics.TokensRedeemedTotal.WithLabelValues(kind, "expired").Inc()
	case errors.Is(err, auth.ErrTokenNotFound):
		s.metrics.TokensRedeemedTotal.WithLabelValues(kind, "not_found").Inc()
	default:
		s.metrics.TokensRedeemedTotal.WithLabelValues(kind, "error").Inc()
	}
}
