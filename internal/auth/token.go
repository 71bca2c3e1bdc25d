package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/miktsoan/core/internal/domain"
)

// TokenIssuer signs session credentials binding a user ID and role.
// Downstream components trust the token for authorization without
// re-verifying the challenge.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenIssuer creates a token issuer with the given HMAC secret.
func NewTokenIssuer(secret string, lifetime time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), lifetime: lifetime}
}

type sessionClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a token for the user.
func (t *TokenIssuer) Issue(userID string, role domain.Role) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns the bound user ID and role.
func (t *TokenIssuer) Parse(tokenString string) (string, domain.Role, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("parse session token: %w", err)
	}
	return claims.Subject, claims.Role, nil
}
