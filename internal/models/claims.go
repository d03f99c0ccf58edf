package models

import "github.com/golang-jwt/jwt/v5"

// Claims carried by moderator bearer tokens. Tokens are minted by the
// platform's auth service; this module only verifies them.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
