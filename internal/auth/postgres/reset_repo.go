// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekey/gatekey/internal/auth"
)

// PasswordResetTokenRepository implements auth.PasswordResetTokenRepository
// using PostgreSQL.
type PasswordResetTokenRepository struct {
	db DB
}

// NewPasswordResetTokenRepository creates a new PasswordResetTokenRepository.
func NewPasswordResetTokenRepository(db DB) *PasswordResetTokenRepository {
	return &PasswordResetTokenRepository{db: db}
}

// Replace stores a reset token, superseding any existing token for the
// same email in a single atomic upsert.
func (r *PasswordResetTokenRepository) Replace(ctx context.Context, token *auth.PasswordResetToken) error {
	_, err := queryFrom(ctx, r.db).Exec(ctx, `
		INSERT INTO password_reset_tokens (id, email, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (LOWER(email)) DO UPDATE SET
			id = EXCLUDED.id,
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`, token.ID.String(), token.Email, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "upsert password_reset_token").
			With("email", token.Email).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset token by its hash.
func (r *PasswordResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordResetToken, error) {
	row := queryFrom(ctx, r.db).QueryRow(ctx, `
		SELECT id, email, token_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`, tokenHash)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// GetByEmail retrieves the reset token for an email.
func (r *PasswordResetTokenRepository) GetByEmail(ctx context.Context, email string) (*auth.PasswordResetToken, error) {
	row := queryFrom(ctx, r.db).QueryRow(ctx, `
		SELECT id, email, token_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE LOWER(email) = LOWER($1)
	`, email)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Delete removes a reset token. Zero affected rows maps to auth.ErrNotFound.
func (r *PasswordResetTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := queryFrom(ctx, r.db).Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password_reset_token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all expired reset tokens and returns the count.
func (r *PasswordResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := queryFrom(ctx, r.db).Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_reset_tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanToken scans a single row into a PasswordResetToken.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *PasswordResetTokenRepository) scanToken(row pgx.Row) (*auth.PasswordResetToken, error) {
	var (
		idStr     string
		email     string
		tokenHash string
		expiresAt time.Time
		createdAt time.Time
	)

	err := row.Scan(&idStr, &email, &tokenHash, &expiresAt, &createdAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset_token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse token id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.PasswordResetToken{
		ID:        id,
		Email:     email,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PasswordResetTokenRepository = (*PasswordResetTokenRepository)(nil)
