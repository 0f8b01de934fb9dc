// Package common contains shared constants and sentinel errors used across
// certhub client components.
package common

// Outbound header names and values shared by the auth client and the gateway.
const (
	AuthorizationHeaderName = "Authorization"
	BearerPrefix            = "Bearer "
	RequestIDHeaderName     = "X-Request-ID"
	ContentTypeJSON         = "application/json"
)
