// Package domain contains entities without logic, just meta-data.
package domain

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 64
)

type UserID string

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the per-connection assertion produced by the auth layer.
// Everything downstream trusts it instead of client payloads.
type Identity struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func NewIdentity(id UserID, username, role string) (Identity, error) {
	if id == "" {
		return Identity{}, Validation("user id empty")
	}
	if len(id) > MaxUserIDLen {
		return Identity{}, Validation("user id too long")
	}
	if username == "" {
		return Identity{}, Validation("username empty")
	}
	if len(username) > MaxUsernameLen {
		return Identity{}, Validation("username too long")
	}
	if role == "" {
		role = RoleUser
	}
	return Identity{UserID: id, Username: username, Role: role}, nil
}
