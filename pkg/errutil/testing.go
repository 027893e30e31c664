// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails the test unless err carries the given oops code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oerr, ok := oops.AsOops(err)
	require.True(t, ok, "want an oops error carrying code %q, got %T: %v", code, err, err)
	assert.Equal(t, code, oerr.Code(), "error code mismatch")
}

// AssertErrorContext fails the test unless err carries the given
// key/value pair in its oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oerr, ok := oops.AsOops(err)
	require.True(t, ok, "want an oops error with context, got %T: %v", err, err)
	ctx := oerr.Context()
	require.Contains(t, ctx, key, "error context missing key %q", key)
	assert.Equal(t, value, ctx[key], "error context value mismatch for %q", key)
}
