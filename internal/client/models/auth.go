package models

// Credentials are the login form fields. Both are validated upstream.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile is the registration payload.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      Role   `json:"role,omitempty"`
}

// TokenPair is the credential material held by a session.
type TokenPair struct {
	Access  string
	Refresh string
}

// AuthResult is the decoded body of login, register and refresh responses.
// Refresh responses may omit User and RefreshToken.
type AuthResult struct {
	User         *Identity `json:"user,omitempty"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
}
