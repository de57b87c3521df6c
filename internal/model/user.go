// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the coarse permission level of a user account.
type Role string

const (
	RoleDefault Role = "default"
	RoleAgent   Role = "agent"
	RoleManager Role = "manager"
)

// Roles lists every valid role, in privilege order.
var Roles = []Role{RoleDefault, RoleAgent, RoleManager}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDefault, RoleAgent, RoleManager:
		return true
	}
	return false
}

// User represents a registered user account.
//
// PasswordHash carries the bcrypt hash between the repository and the auth
// service. Its json tag is "-" so a User can be written to any response
// without leaking it.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName"  db:"last_name"`
	Role         Role      `json:"role"      db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Identity is the authenticated caller, decoded from a token.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// HasRole reports whether the identity holds any of the given roles.
func (i *Identity) HasRole(roles ...Role) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
