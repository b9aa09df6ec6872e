package types

import "github.com/golang-jwt/jwt/v5"

// Claims are the access token claims issued by the identity service.
// Only UserID is consumed here.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}
