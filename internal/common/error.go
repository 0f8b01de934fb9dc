// Package common defines shared constants and sentinel errors used across
// the certhub client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Login / register was refused by the auth endpoint.
	ErrCredentialsRejected = errors.New("credentials rejected")

	// Access token invalid and the refresh attempt failed (or was impossible).
	// Consumers are expected to send the user back to login.
	ErrSessionExpired = errors.New("session expired")

	// A persisted slot could not be parsed. Never returned to consumers,
	// the slot is cleared and treated as absent.
	ErrMalformedPersistedState = errors.New("malformed persisted state")

	// No refresh token was available when one was needed.
	ErrRefreshUnavailable = errors.New("refresh token unavailable")

	// The auth endpoint refused the refresh token.
	ErrRefreshRejected = errors.New("refresh token rejected")

	// A 2xx auth response lacked the fields needed to build a session.
	ErrInvalidAuthResponse = errors.New("invalid auth response")

	// Transport-level failure (dial, TLS, timeout, truncated body).
	ErrNetworkFailure = errors.New("network failure")
)
