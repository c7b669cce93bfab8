// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekey/gatekey/internal/auth"
)

func TestGenerateToken(t *testing.T) {
	value, hash, err := auth.GenerateToken()
	require.NoError(t, err)

	assert.Len(t, value, auth.TokenBytes*2) // hex-encoded
	assert.Len(t, hash, 64)                 // sha256 hex
	assert.Equal(t, auth.HashToken(value), hash)

	t.Run("values are unique", func(t *testing.T) {
		other, _, err := auth.GenerateToken()
		require.NoError(t, err)
		assert.NotEqual(t, value, other)
	})
}

func TestVerifyTokenValue(t *testing.T) {
	value, hash, err := auth.GenerateToken()
	require.NoError(t, err)

	assert.True(t, auth.VerifyTokenValue(value, hash))
	assert.False(t, auth.VerifyTokenValue("not the token", hash))
	assert.False(t, auth.VerifyTokenValue("", hash))
	assert.False(t, auth.VerifyTokenValue(value, ""))
}

func TestNewVerificationToken(t *testing.T) {
	before := time.Now()
	token, value, err := auth.NewVerificationToken("Ann@X.com")
	require.NoError(t, err)

	assert.Equal(t, "ann@x.com", token.Email)
	assert.Equal(t, auth.HashToken(value), token.TokenHash)
	assert.WithinDuration(t, before.Add(auth.TokenTTL), token.ExpiresAt, 2*time.Second)
	assert.NotEmpty(t, token.ID.String())

	t.Run("empty email rejected", func(t *testing.T) {
		_, _, err := auth.NewVerificationToken("")
		require.Error(t, err)
	})
}

func TestNewPasswordResetToken(t *testing.T) {
	before := time.Now()
	token, value, err := auth.NewPasswordResetToken("ann@x.com")
	require.NoError(t, err)

	assert.Equal(t, "ann@x.com", token.Email)
	assert.Equal(t, auth.HashToken(value), token.TokenHash)
	assert.WithinDuration(t, before.Add(auth.TokenTTL), token.ExpiresAt, 2*time.Second)

	t.Run("empty email rejected", func(t *testing.T) {
		_, _, err := auth.NewPasswordResetToken("")
		require.Error(t, err)
	})
}

func TestTokenIsExpired(t *testing.T) {
	now := time.Now()
	token := &auth.VerificationToken{ExpiresAt: now}

	tests := []struct {
		name    string
		at      time.Time
		expired bool
	}{
		{"before expiry", now.Add(-time.Minute), false},
		{"exactly at expiry", now, true}, // no grace period
		{"after expiry", now.Add(time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, token.IsExpired(tt.at))
		})
	}
}
