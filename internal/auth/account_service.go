// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// SignInOutcome tags the result of an authorization decision.
type SignInOutcome int

const (
	// OutcomeAuthorized means credentials and verification both passed;
	// the caller may proceed with the issued session.
	OutcomeAuthorized SignInOutcome = iota

	// OutcomeVerificationRequired means credentials passed but the email
	// is unverified. A fresh verification token was issued and delivered;
	// this is a redirect-to-resend signal, not a failure.
	OutcomeVerificationRequired
)

// SignInResult is the authorization decision handed back to the caller.
// No password or hash ever crosses this boundary.
type SignInResult struct {
	Outcome SignInOutcome
	User    *User
	Session string
}

// AccountService handles registration and sign-in authorization.
type AccountService struct {
	users    UserRepository
	hasher   PasswordHasher
	verifier VerificationRequester
	sessions SessionIssuer
	logger   *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	users UserRepository,
	hasher PasswordHasher,
	verifier VerificationRequester,
	sessions SessionIssuer,
) (*AccountService, error) {
	return NewAccountServiceWithLogger(users, hasher, verifier, sessions, slog.Default())
}

// NewAccountServiceWithLogger creates an AccountService with an explicit
// logger.
func NewAccountServiceWithLogger(
	users UserRepository,
	hasher PasswordHasher,
	verifier VerificationRequester,
	sessions SessionIssuer,
	logger *slog.Logger,
) (*AccountService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("password hasher is required")
	}
	if verifier == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("verification requester is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("session issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("logger is required")
	}
	return &AccountService{
		users:    users,
		hasher:   hasher,
		verifier: verifier,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// Register creates an account and issues its verification token. The user
// starts unverified; sign-in stays gated until the token is redeemed.
// Returns ErrEmailTaken when the email already has an account: the
// existence check here is best-effort, the store's unique constraint is
// the source of truth under races.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*User, error) {
	if fe := ValidateRegistration(name, email, password); fe != nil {
		return nil, oops.Code("AUTH_VALIDATION_FAILED").
			With("fields", map[string]string(fe)).
			Wrap(fe)
	}

	if _, err := s.users.GetByEmail(ctx, NormalizeEmail(email)); err == nil {
		return nil, oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrEmailTaken)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(name, email, hash)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "construct user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, oops.Code("AUTH_EMAIL_TAKEN").Wrap(ErrEmailTaken)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	if err := s.verifier.Request(ctx, user.Email); err != nil {
		// The account exists; a failed delivery is surfaced so the caller
		// can offer a resend, which supersedes the token.
		return user, err
	}

	s.logger.Info("account registered", "email", user.Email)
	return user, nil
}

// SignIn validates credentials and verification status. Outcomes, in
// evaluation order: ErrUserNotFound, ErrInvalidCredentials,
// OutcomeVerificationRequired (side effect: a fresh verification token is
// issued and delivered), OutcomeAuthorized with a session from the issuer.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Verify against a dummy hash when the user is missing so response
	// time does not reveal email existence.
	targetHash := DummyPasswordHash
	if user != nil {
		targetHash = user.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if user == nil {
		return nil, oops.Code("AUTH_USER_NOT_FOUND").Wrap(ErrUserNotFound)
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if !user.IsVerified() {
		if err := s.verifier.Request(ctx, user.Email); err != nil {
			return nil, err
		}
		s.logger.Info("sign-in gated on verification", "email", user.Email)
		return &SignInResult{
			Outcome: OutcomeVerificationRequired,
			User:    user,
		}, nil
	}

	session, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_ISSUE_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}

	s.logger.Info("sign-in authorized", "email", user.Email)
	return &SignInResult{
		Outcome: OutcomeAuthorized,
		User:    user,
		Session: session,
	}, nil
}
