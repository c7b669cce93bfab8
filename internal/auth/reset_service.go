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

// PasswordResetService issues and redeems password-reset tokens.
type PasswordResetService struct {
	users    UserRepository
	tokens   PasswordResetTokenRepository
	hasher   PasswordHasher
	notifier Notifier
	tx       Transactor
	logger   *slog.Logger
}

// NewPasswordResetService creates a PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	tokens PasswordResetTokenRepository,
	hasher PasswordHasher,
	notifier Notifier,
	tx Transactor,
) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(users, tokens, hasher, notifier, tx, slog.Default())
}

// NewPasswordResetServiceWithLogger creates a PasswordResetService with an
// explicit logger.
func NewPasswordResetServiceWithLogger(
	users UserRepository,
	tokens PasswordResetTokenRepository,
	hasher PasswordHasher,
	notifier Notifier,
	tx Transactor,
	logger *slog.Logger,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("token repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("password hasher is required")
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
	return &PasswordResetService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		tx:       tx,
		logger:   logger,
	}, nil
}

// Request issues a fresh password-reset token for an email and delivers
// it. Precondition: a user with this email exists; verification state does
// not matter. Any prior reset token for the email is superseded.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
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
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, value, err := NewPasswordResetToken(user.Email)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	if err := s.tokens.Replace(ctx, token); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "replace token").
			Wrap(err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, value); err != nil {
		s.logger.Warn("reset email delivery failed",
			"email", user.Email,
			"error", err,
		)
		return oops.Code("NOTIFY_FAILED").
			With("operation", "send reset email").
			Wrap(errors.Join(ErrNotificationFailed, err))
	}

	s.logger.Info("password reset token issued", "email", user.Email)
	return nil
}

// Redeem validates a reset token and sets the user's password to the new
// value. The hash update and the token delete commit in one transaction;
// redemption is single-use. An expired token is left in place and the
// password is unchanged.
func (s *PasswordResetService) Redeem(ctx context.Context, tokenValue, newPassword string) error {
	if tokenValue == "" {
		return oops.Code("TOKEN_NOT_FOUND").
			With("reason", "empty token").
			Wrap(ErrTokenNotFound)
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	tokenHash := HashToken(tokenValue)

	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		token, err := s.tokens.GetByTokenHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("TOKEN_NOT_FOUND").Wrap(ErrTokenNotFound)
			}
			return oops.Code("RESET_REDEEM_FAILED").
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
			return oops.Code("RESET_REDEEM_FAILED").
				With("operation", "get token subject").
				Wrap(err)
		}

		// Hashing is CPU-costly but must happen before the writes so the
		// transaction stays all-or-nothing.
		newHash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return oops.Code("RESET_REDEEM_FAILED").
				With("operation", "hash new password").
				Wrap(err)
		}

		if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
			return oops.Code("RESET_REDEEM_FAILED").
				With("operation", "update password").
				Wrap(err)
		}

		if err := s.tokens.Delete(ctx, token.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("TOKEN_NOT_FOUND").Wrap(ErrTokenNotFound)
			}
			return oops.Code("RESET_REDEEM_FAILED").
				With("operation", "delete token").
				Wrap(err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("password reset completed")
	return nil
}
