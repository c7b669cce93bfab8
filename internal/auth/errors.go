// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth

import "errors"

// Sentinel errors for expected conditions. Services wrap these with oops
// codes and context; callers branch with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when registering an email that already has
	// an account. The store's unique constraint is the source of truth.
	ErrEmailTaken = errors.New("email already in use")

	// ErrUserNotFound is returned when no account exists for an email.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned when password verification fails.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenNotFound is returned when a token value is absent from the
	// store, including a second redemption of an already-consumed token.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired is returned when a token is past its expiry. The
	// token is left in place; only a re-issue supersedes it.
	ErrTokenExpired = errors.New("token expired")

	// ErrAlreadyVerified is returned when requesting verification for an
	// account whose email is already verified.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrNotificationFailed is returned when token delivery fails after the
	// token was committed. The token remains valid; re-requesting
	// supersedes it.
	ErrNotificationFailed = errors.New("notification failed")
)
