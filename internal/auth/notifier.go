// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth

import "context"

// Notifier delivers token values to users out-of-band. Delivery is
// fire-and-forget from the lifecycle's perspective: a failure is surfaced
// to the caller but never rolls back an already-committed token.
type Notifier interface {
	// SendVerification delivers an email-verification token.
	SendVerification(ctx context.Context, email, token string) error

	// SendPasswordReset delivers a password-reset token.
	SendPasswordReset(ctx context.Context, email, token string) error
}

// SessionIssuer establishes a session for an authorized user. Session and
// cookie mechanics live entirely behind this boundary; the lifecycle hands
// over the authorized identity and nothing else.
type SessionIssuer interface {
	// Issue mints a session token for the user.
	Issue(ctx context.Context, user *User) (string, error)
}
