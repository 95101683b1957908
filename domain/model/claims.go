package model

import "github.com/golang-jwt/jwt"

// UserClaims is the JWT payload minted by the token command. Issuer carries the user id.
type UserClaims struct {
	jwt.StandardClaims
	UserName string `json:"user_name,omitempty"`
}
