package domain

// User represents an account on the server.
//
// The ID doubles as the identity key carried in access-token subject claims.
// A user row is created on first authenticated request if one does not exist
// yet, so externally-issued identities resolve to a local account.
type User struct {
	Base
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"` // argon2id encoded hash, never serialized
	DisplayName  string         `json:"display_name"`
	Settings     map[string]any `json:"settings,omitempty"` // free-form client settings blob
}

// Name returns the best display name we have for the user.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
