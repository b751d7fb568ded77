package signup

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims are the claims carried by a session token. The registered
// jti claim holds the server side session ID.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	Handle   string `json:"username,omitempty"`
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Role returns the global role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// SessionID parses the jti claim
func (c *JWTClaims) SessionID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.ID)
}
