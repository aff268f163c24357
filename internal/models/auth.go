package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserRole distinguishes ordinary members from directory moderators.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// AuthClaims is the payload of access tokens issued by the external auth
// provider. This service validates tokens; it never issues them.
type AuthClaims struct {
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry the admin role.
func (c *AuthClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
