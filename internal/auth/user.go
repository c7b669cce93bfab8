// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User represents an account identified by email. VerifiedAt is nil until
// the email-verification token for the account has been redeemed; sign-in
// is not authorized before that.
type User struct {
	ID           ulid.ULID
	Name         string
	Email        string
	PasswordHash string
	VerifiedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a User with a normalized email and the given password
// hash. The caller is responsible for validating the raw inputs first; the
// plaintext password never reaches this constructor.
func NewUser(name, email, passwordHash string) (*User, error) {
	if name == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("name cannot be empty")
	}
	if email == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsVerified reports whether the account's email has been verified.
func (u *User) IsVerified() bool {
	return u.VerifiedAt != nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrEmailTaken if the email is
	// already registered (unique constraint on lower(email)).
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// MarkVerified sets the user's verified-at timestamp.
	MarkVerified(ctx context.Context, id ulid.ULID, verifiedAt time.Time) error

	// UpdatePassword replaces only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
