// Package token decodes the claims embedded in access tokens without a
// network round-trip. Signatures are not verified: the server does that on
// every call, the client only needs the expiry for refresh scheduling.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrDecode = errors.New("token decode error")

// Claims are the subset of access token claims the client uses.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// DecodeClaims parses the payload of a JWT-shaped access token.
// A token without an exp claim is rejected.
func DecodeClaims(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrDecode)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if exp == nil {
		return Claims{}, fmt.Errorf("%w: no exp claim", ErrDecode)
	}

	sub, _ := parsed.Claims.GetSubject()

	return Claims{Subject: sub, ExpiresAt: exp.Time}, nil
}

// DecodeExpiry returns the expiry instant embedded in raw.
func DecodeExpiry(raw string) (time.Time, error) {
	c, err := DecodeClaims(raw)
	if err != nil {
		return time.Time{}, err
	}
	return c.ExpiresAt, nil
}

// TimeUntilExpiry is expiry - now. Undecodable tokens count as already
// expired and yield 0.
func TimeUntilExpiry(raw string, now time.Time) time.Duration {
	exp, err := DecodeExpiry(raw)
	if err != nil {
		return 0
	}
	return exp.Sub(now)
}

// Expired reports whether raw is expired (or undecodable) at now.
func Expired(raw string, now time.Time) bool {
	return TimeUntilExpiry(raw, now) <= 0
}
