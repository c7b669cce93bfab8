// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekey/gatekey/internal/auth"
	"github.com/gatekey/gatekey/internal/auth/postgres"
)

func testResetToken() *auth.PasswordResetToken {
	now := time.Now()
	return &auth.PasswordResetToken{
		ID:        ulid.Make(),
		Email:     "ann@x.com",
		TokenHash: auth.HashToken("some-reset-value"),
		ExpiresAt: now.Add(auth.TokenTTL),
		CreatedAt: now,
	}
}

func TestPasswordResetTokenRepository_Replace(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewPasswordResetTokenRepository(mock)
	token := testResetToken()

	mock.ExpectExec("INSERT INTO password_reset_tokens").
		WithArgs(token.ID.String(), token.Email, token.TokenHash, token.ExpiresAt, token.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Replace(ctx, token))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordResetTokenRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("returns token", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewPasswordResetTokenRepository(mock)
		token := testResetToken()

		mock.ExpectQuery("FROM password_reset_tokens").
			WithArgs(token.TokenHash).
			WillReturnRows(pgxmock.NewRows(tokenColumns()).
				AddRow(token.ID.String(), token.Email, token.TokenHash, token.ExpiresAt, token.CreatedAt))

		got, err := repo.GetByTokenHash(ctx, token.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, token.ID, got.ID)
	})

	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewPasswordResetTokenRepository(mock)

		mock.ExpectQuery("FROM password_reset_tokens").
			WithArgs("missing-hash").
			WillReturnRows(pgxmock.NewRows(tokenColumns()))

		_, err := repo.GetByTokenHash(ctx, "missing-hash")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestPasswordResetTokenRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes token", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewPasswordResetTokenRepository(mock)
		id := ulid.Make()

		mock.ExpectExec("DELETE FROM password_reset_tokens").
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(ctx, id))
	})

	t.Run("zero rows maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewPasswordResetTokenRepository(mock)
		id := ulid.Make()

		mock.ExpectExec("DELETE FROM password_reset_tokens").
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.Delete(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestPasswordResetTokenRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewPasswordResetTokenRepository(mock)

	mock.ExpectExec("DELETE FROM password_reset_tokens").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	count, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
