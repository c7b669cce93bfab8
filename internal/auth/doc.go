// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

// Package auth implements the credential and token lifecycle for Gatekey.
//
// # Domain Types
//
// Domain types (User, VerificationToken, PasswordResetToken) should be
// created using their respective constructors:
//   - NewUser - creates a User with a validated, normalized email
//   - NewVerificationToken - issues a fresh email-verification token
//   - NewPasswordResetToken - issues a fresh password-reset token
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - AccountService - registration and sign-in authorization
//   - VerificationService - email-verification token issue and redemption
//   - PasswordResetService - password-reset token issue and redemption
//
// Services are created with New*Service constructors that validate
// dependencies. Token redemption is single-use: the token delete and its one
// permitted effect commit in the same transaction, so exactly one concurrent
// redeemer can win.
package auth
