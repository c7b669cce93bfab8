// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration.
const (
	TokenBytes = 32        // 32 bytes = 64 hex chars, 256 bits of entropy
	TokenTTL   = time.Hour // fixed validity window
)

// GenerateToken creates a secure random token value and its hash.
// Returns (plaintext_value, sha256_hash, error). The plaintext value is
// sent to the user out-of-band; only the hash is persisted.
func GenerateToken() (value, hash string, err error) {
	raw := make([]byte, TokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").Wrap(err)
	}

	value = hex.EncodeToString(raw)
	hash = HashToken(value)

	return value, hash, nil
}

// HashToken computes the SHA-256 hash of a token value.
func HashToken(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

// VerifyTokenValue checks a plaintext token value against a stored hash
// using a constant-time comparison.
func VerifyTokenValue(value, hash string) bool {
	if value == "" || hash == "" {
		return false
	}
	computed := HashToken(value)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// VerificationToken represents the one outstanding email-verification
// request for an email. At most one active token exists per email;
// issuing a new one supersedes the previous.
type VerificationToken struct {
	ID        ulid.ULID
	Email     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewVerificationToken issues a verification token for an email.
// Returns the record to persist and the plaintext value for delivery.
func NewVerificationToken(email string) (*VerificationToken, string, error) {
	if email == "" {
		return nil, "", oops.Code("TOKEN_INVALID_EMAIL").Errorf("email cannot be empty")
	}

	value, hash, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	return &VerificationToken{
		ID:        ulid.Make(),
		Email:     NormalizeEmail(email),
		TokenHash: hash,
		ExpiresAt: now.Add(TokenTTL),
		CreatedAt: now,
	}, value, nil
}

// IsExpired reports whether the token is past its expiry at the given
// instant. No grace period.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// PasswordResetToken represents the one outstanding password-reset request
// for an email. Same shape and invariants as VerificationToken, scoped to
// password reset.
type PasswordResetToken struct {
	ID        ulid.ULID
	Email     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewPasswordResetToken issues a password-reset token for an email.
// Returns the record to persist and the plaintext value for delivery.
func NewPasswordResetToken(email string) (*PasswordResetToken, string, error) {
	if email == "" {
		return nil, "", oops.Code("TOKEN_INVALID_EMAIL").Errorf("email cannot be empty")
	}

	value, hash, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	return &PasswordResetToken{
		ID:        ulid.Make(),
		Email:     NormalizeEmail(email),
		TokenHash: hash,
		ExpiresAt: now.Add(TokenTTL),
		CreatedAt: now,
	}, value, nil
}

// IsExpired reports whether the token is past its expiry at the given
// instant. No grace period.
func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// VerificationTokenRepository manages verification-token persistence.
// Implementations must be transaction-aware: methods called within a
// Transactor.InTransaction callback participate in that transaction.
type VerificationTokenRepository interface {
	// Replace stores the token, superseding any existing token for the
	// same email in a single atomic statement.
	Replace(ctx context.Context, token *VerificationToken) error

	// GetByTokenHash retrieves a token by its hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*VerificationToken, error)

	// GetByEmail retrieves the token for an email.
	GetByEmail(ctx context.Context, email string) (*VerificationToken, error)

	// Delete removes a token. Returns ErrNotFound if no row was deleted,
	// which is how a lost redemption race surfaces.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes all expired tokens and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// PasswordResetTokenRepository manages reset-token persistence. Same
// contract as VerificationTokenRepository.
type PasswordResetTokenRepository interface {
	Replace(ctx context.Context, token *PasswordResetToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error)
	GetByEmail(ctx context.Context, email string) (*PasswordResetToken, error)
	Delete(ctx context.Context, id ulid.ULID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// Transactor runs a function within a single store transaction. Repository
// calls made with the callback's context commit or roll back together.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
