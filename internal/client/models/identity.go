// Package models defines client-side data models shared by the session store,
// the auth API client and the consumers.
package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// Role is the platform role of an identity. It only drives consumer routing.
type Role string

const (
	RoleStudent          Role = "student"
	RoleInstitution      Role = "institution"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleAdmin            Role = "admin"

	// DefaultRole is the lowest-privilege role, used when registration omits one.
	DefaultRole = RoleStudent
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstitution, RoleInstitutionAdmin, RoleAdmin:
		return true
	}
	return false
}

var ErrInvalidIdentity = errors.New("invalid identity")

// Identity is the authenticated user's profile as returned by the auth endpoints.
type Identity struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Clone returns a copy so callers cannot mutate the store's identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// MarshalIdentity serialises an identity for the persisted userData slot.
func MarshalIdentity(i *Identity) ([]byte, error) {
	if i == nil {
		return nil, ErrInvalidIdentity
	}
	return json.Marshal(i)
}

// UnmarshalIdentity parses the persisted userData slot. Empty input, the
// literal "undefined"/"null" left behind by older clients, and identities
// without an id or email are rejected.
func UnmarshalIdentity(b []byte) (*Identity, error) {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "undefined" || s == "null" {
		return nil, ErrInvalidIdentity
	}

	var i Identity
	if err := json.Unmarshal([]byte(s), &i); err != nil {
		return nil, errors.Join(ErrInvalidIdentity, err)
	}
	if i.ID == "" && i.Email == "" {
		return nil, ErrInvalidIdentity
	}
	return &i, nil
}
