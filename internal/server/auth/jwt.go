// Package auth mints and parses the session tokens handed to the web layer
// after a successful login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/netsoclabs/memberd/internal/common"
)

// Claims carries the standard registered claims plus the member's handle.
type Claims struct {
	jwt.RegisteredClaims
	Username string
}

// GenerateToken returns a signed HS256 session token for username.
func GenerateToken(username string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Username: username,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUsernameFromToken validates tokenString and extracts the member handle.
func GetUsernameFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrInvalidToken
		}
		return "", err
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.Username, nil
}
