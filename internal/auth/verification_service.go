// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// VerificationRequester issues a fresh verification token for an email and
// hands it to the notifier. AccountService depends on this to re-issue a
// token when an unverified account attempts to sign in.
type VerificationRequester interface {
	Request(ctx context.Context, email string) error
}

// VerificationService issues and redeems email-verification tokens.
type VerificationService struct {
	users    UserRepository
	tokens   VerificationTokenRepository
	notifier Notifier
	tx       Transactor
	logger   *slog.Logger
}

// NewVerificationService creates a VerificationService.
func NewVerificationService(
	users UserRepository,
	tokens VerificationTokenRepository,
	notifier Notifier,
	tx Transactor,
) (*VerificationService, error) {
	return NewVerificationServiceWithLogger(users, tokens, notifier, tx, slog.Default())
}

// NewVerificationServiceWithLogger creates a VerificationService with an
// explicit logger.
func NewVerificationServiceWithLogger(
	users UserRepository,
	tokens VerificationTokenRepository,
	notifier Notifier,
	tx Transactor,
	logger *slog.Logger,
) (*VerificationService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("token repository is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("notifier is required")
	}
	if tx == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("transactor is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("logger is required")
	}
	return &VerificationService{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		tx:       tx,
		logger:   logger,
	}, nil
}

// Request issues a fresh verification token for an email and delivers it.
// Preconditions: a user with this email exists and is not yet verified.
// Any prior token for the email is superseded, so only the latest link
// works. A delivery failure surfaces as ErrNotificationFailed but leaves
// the committed token valid.
func (s *VerificationService) Request(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_USER_NOT_FOUND").
				With("operation", "get user by email").
				Wrap(ErrUserNotFound)
		}
		return oops.Code("VERIFICATION_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	if user.IsVerified() {
		return oops.Code("AUTH_ALREADY_VERIFIED").Wrap(ErrAlreadyVerified)
	}

	token, value, err := NewVerificationToken(user.Email)
	if err != nil {
		return oops.Code("VERIFICATION_REQUEST_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	// Single upsert keyed by email: two concurrent requests serialize on
	// the unique index and exactly one token survives.
	if err := s.tokens.Replace(ctx, token); err != nil {
		return oops.Code("VERIFICATION_REQUEST_FAILED").
			With("operation", "replace token").
			Wrap(err)
	}

	if err := s.notifier.SendVerification(ctx, user.Email, value); err != nil {
		s.logger.Warn("verification email delivery failed",
			"email", user.Email,
			"error", err,
		)
		return oops.Code("NOTIFY_FAILED").
			With("operation", "send verification email").
			Wrap(errors.Join(ErrNotificationFailed, err))
	}

	s.logger.Info("verification token issued", "email", user.Email)
	return nil
}

// Redeem validates a verification token and marks the subject user as
// verified. The verified-at write and the token delete commit in one
// transaction; a second redemption with the same value fails with
// ErrTokenNotFound. An expired token is left in place.
func (s *VerificationService) Redeem(ctx context.Context, tokenValue string) error {
	if tokenValue == "" {
		return oops.Code("TOKEN_NOT_FOUND").
			With("reason", "empty token").
			Wrap(ErrTokenNotFound)
	}

	tokenHash := HashToken(tokenValue)

	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		token, err := s.tokens.GetByTokenHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("TOKEN_NOT_FOUND").Wrap(ErrTokenNotFound)
			}
			return oops.Code("VERIFICATION_REDEEM_FAILED").
				With("operation", "get token by hash").
				Wrap(err)
		}

		if token.IsExpired(time.Now()) {
			return oops.Code("TOKEN_EXPIRED").Wrap(ErrTokenExpired)
		}

		user, err := s.users.GetByEmail(ctx, token.Email)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("AUTH_USER_NOT_FOUND").
					With("operation", "get token subject").
					Wrap(ErrUserNotFound)
			}
			return oops.Code("VERIFICATION_REDEEM_FAILED").
				With("operation", "get token subject").
				Wrap(err)
		}

		if err := s.users.MarkVerified(ctx, user.ID, time.Now()); err != nil {
			return oops.Code("VERIFICATION_REDEEM_FAILED").
				With("operation", "mark verified").
				Wrap(err)
		}

		// The delete's affected-row check decides a redemption race:
		// the loser observes zero rows and the transaction rolls back.
		if err := s.tokens.Delete(ctx, token.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("TOKEN_NOT_FOUND").Wrap(ErrTokenNotFound)
			}
			return oops.Code("VERIFICATION_REDEEM_FAILED").
				With("operation", "delete token").
				Wrap(err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("email verified")
	return nil
}

// Compile-time interface check.
var _ VerificationRequester = (*VerificationService)(nil)
