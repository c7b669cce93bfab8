// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

package auth

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// Credential validation constraints.
const (
	MinNameLength     = 3
	MinPasswordLength = 6
	MaxEmailLength    = 254
)

// emailRegex matches a pragmatic email shape: one @, no spaces, a dot in
// the domain. Deliverability is proven by the verification token, not here.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldErrors maps a field name to its validation message. A nil or empty
// value means the input is valid; anything else is returned before any
// store access happens.
type FieldErrors map[string]string

// Error renders field errors in a stable order.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", f, fe[f])
	}
	return b.String()
}

// NormalizeEmail lowercases and trims an email so lookups and uniqueness
// are case-insensitive in both directions.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates the shape of an email address.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return oops.Code("AUTH_VALIDATION_FAILED").Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_VALIDATION_FAILED").Errorf("email is not a valid address")
	}
	return nil
}

// ValidatePassword validates a candidate password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateRegistration checks all registration fields at once and returns
// nil when the input is valid. Evaluated synchronously before any store
// access.
func ValidateRegistration(name, email, password string) FieldErrors {
	fe := FieldErrors{}
	if len(strings.TrimSpace(name)) < MinNameLength {
		fe["name"] = fmt.Sprintf("name must be at least %d characters", MinNameLength)
	}
	if err := ValidateEmail(email); err != nil {
		fe["email"] = "email is not a valid address"
	}
	if err := ValidatePassword(password); err != nil {
		fe["password"] = fmt.Sprintf("password must be at least %d characters", MinPasswordLength)
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}
