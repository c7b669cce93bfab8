// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

// Package session issues signed session tokens for authorized sign-ins.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/gatekey/gatekey/internal/auth"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Claims are the JWT claims carried by a session token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// JWTIssuer implements auth.SessionIssuer with HS256-signed JWTs.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTIssuer creates a JWTIssuer. The secret must be non-empty; ttl
// defaults to DefaultTTL when zero.
func NewJWTIssuer(secret []byte, issuer string, ttl time.Duration) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("SESSION_BAD_CONFIG").Errorf("signing secret is required")
	}
	if ttl < 0 {
		return nil, oops.Code("SESSION_BAD_CONFIG").Errorf("ttl must not be negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &JWTIssuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue creates a signed session token for a user. Only called after
// credentials and verification status have both passed.
func (i *JWTIssuer) Issue(_ context.Context, user *auth.User) (string, error) {
	if user == nil {
		return "", oops.Code("SESSION_ISSUE_FAILED").Errorf("user is required")
	}

	now := time.Now()
	claims := Claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "sign token").
			Wrap(err)
	}
	return signed, nil
}

// Parse validates a session token and returns its claims. The signing
// method is pinned to HS256; tokens signed any other way are rejected.
func (i *JWTIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID").Wrap(err)
	}
	return claims, nil
}

// Compile-time interface check.
var _ auth.SessionIssuer = (*JWTIssuer)(nil)
