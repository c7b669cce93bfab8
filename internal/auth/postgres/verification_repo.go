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

// VerificationTokenRepository implements auth.VerificationTokenRepository
// using PostgreSQL.
type VerificationTokenRepository struct {
	db DB
}

// NewVerificationTokenRepository creates a new VerificationTokenRepository.
func NewVerificationTokenRepository(db DB) *VerificationTokenRepository {
	return &VerificationTokenRepository{db: db}
}

// Replace stores a verification token, superseding any existing token for
// the same email. The upsert rides the unique index on LOWER(email), so
// concurrent requests serialize and exactly one token survives.
func (r *VerificationTokenRepository) Replace(ctx context.Context, token *auth.VerificationToken) error {
	_, err := queryFrom(ctx, r.db).Exec(ctx, `
		INSERT INTO verification_tokens (id, email, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (LOWER(email)) DO UPDATE SET
			id = EXCLUDED.id,
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`, token.ID.String(), token.Email, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return oops.Code("TOKEN_REPLACE_FAILED").
			With("operation", "upsert verification_token").
			With("email", token.Email).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a verification token by its hash.
func (r *VerificationTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.VerificationToken, error) {
	row := queryFrom(ctx, r.db).QueryRow(ctx, `
		SELECT id, email, token_hash, expires_at, created_at
		FROM verification_tokens
		WHERE token_hash = $1
	`, tokenHash)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// GetByEmail retrieves the verification token for an email.
func (r *VerificationTokenRepository) GetByEmail(ctx context.Context, email string) (*auth.VerificationToken, error) {
	row := queryFrom(ctx, r.db).QueryRow(ctx, `
		SELECT id, email, token_hash, expires_at, created_at
		FROM verification_tokens
		WHERE LOWER(email) = LOWER($1)
	`, email)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Delete removes a verification token. Zero affected rows maps to
// auth.ErrNotFound; inside a redemption transaction this is how the losing
// racer learns the token is gone.
func (r *VerificationTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := queryFrom(ctx, r.db).Exec(ctx, `
		DELETE FROM verification_tokens WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete verification_token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all expired verification tokens and returns the count.
func (r *VerificationTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := queryFrom(ctx, r.db).Exec(ctx, `
		DELETE FROM verification_tokens WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired verification_tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanToken scans a single row into a VerificationToken.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *VerificationTokenRepository) scanToken(row pgx.Row) (*auth.VerificationToken, error) {
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
		return nil, oops.Code("TOKEN_SCAN_FAILED").
			With("operation", "scan verification_token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").
			With("operation", "parse token id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.VerificationToken{
		ID:        id,
		Email:     email,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.VerificationTokenRepository = (*VerificationTokenRepository)(nil)
