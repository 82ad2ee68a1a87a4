// Package auth issues and verifies the bearer tokens that guard the
// mutating attachment endpoints.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionToken signs and verifies editor session scoped JWT tokens.
type SessionToken struct {
	secretKey []byte
	ttl       time.Duration
}

// NewSessionToken builds a token helper using the provided secret.
func NewSessionToken(secretKey string) *SessionToken {
	return &SessionToken{
		secretKey: []byte(secretKey),
		ttl:       12 * time.Hour,
	}
}

// WithTTL allows customising the expiration duration.
func (st *SessionToken) WithTTL(ttl time.Duration) *SessionToken {
	if ttl > 0 {
		st.ttl = ttl
	}
	return st
}

// GenerateToken issues a JWT for the provided session identifier.
func (st *SessionToken) GenerateToken(sessionID string) (string, error) {
	if st == nil {
		return "", errors.New("session token is nil")
	}
	if len(st.secretKey) == 0 {
		return "", errors.New("session token secret is empty")
	}

	expireTime := time.Now().Add(st.ttl)
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        expireTime.Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(st.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken validates the JWT and extracts the session identifier.
func (st *SessionToken) VerifyToken(tokenString string) (bool, string, error) {
	if st == nil {
		return false, "", errors.New("session token is nil")
	}
	if len(st.secretKey) == 0 {
		return false, "", errors.New("session token secret is empty")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return st.secretKey, nil
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return false, "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false, "", errors.New("invalid claims")
	}
	sessionID, ok := claims["session_id"].(string)
	if !ok {
		return false, "", errors.New("invalid session_id claim")
	}
	return true, sessionID, nil
}
