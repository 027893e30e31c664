// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for the credential flows. Callers match these with
// errors.Is and translate them into user-facing flash notices; none of
// them should reach the transport layer as an unhandled fault.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords. The two cases are not distinguished to prevent
	// username enumeration.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrDuplicateUsername is returned when a signup or username change
	// collides with an existing account.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrPasswordMismatch is returned when the signup confirmation does
	// not match the password.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrUnknownAccount is returned by the forgot-password flow when the
	// username does not exist or the email does not match. Deliberately
	// undifferentiated.
	ErrUnknownAccount = errors.New("unknown account or email mismatch")

	// ErrStoreUnavailable is returned when the credential or session
	// store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// MissingFieldError identifies which required signup field was left
// blank, so the form can flash a field-specific message.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// IsMissingField reports whether err is a MissingFieldError and, if so,
// returns the offending field name.
func IsMissingField(err error) (string, bool) {
	var mfe *MissingFieldError
	if errors.As(err, &mfe) {
		return mfe.Field, true
	}
	return "", false
}
