// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

// Package auth provides credential authentication for MemberDir.
//
// # Domain Types
//
// Member is the account record. Create it through NewMember, which
// validates the username and email; direct struct initialization
// bypasses validation and may create invalid state. Repository
// implementations receive pre-validated types.
//
// # Services
//
// Service coordinates the credential flows: Authenticate (login),
// Signup, and ResetPassword (forgot-password). It deliberately reports
// a single undifferentiated failure for unknown usernames and wrong
// passwords, and verifies against a dummy hash when the username is
// unknown so response timing does not reveal account existence.
package auth
