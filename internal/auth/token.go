// Package auth provides password hashing and signed session tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of a session token.
const TokenTTL = time.Hour

var (
	// ErrNoToken means the session holds no token at all.
	ErrNoToken = errors.New("no session token")
	// ErrExpired means the token was valid but its lifetime has passed.
	ErrExpired = errors.New("session token expired")
	// ErrMalformed means the token failed signature or format checks.
	ErrMalformed = errors.New("malformed session token")
)

// Claims are the identity assertions carried by a session token.
type Claims struct {
	Login       string `json:"login"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256-signed session tokens.
// The signing key is loaded once at startup and never rotated.
type TokenService struct {
	key []byte
	now func() time.Time
}

// NewTokenService builds a token service around a process-wide secret.
func NewTokenService(key []byte) (*TokenService, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is required")
	}
	return &TokenService{key: key, now: time.Now}, nil
}

// WithClock overrides the time source, for expiry tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a token asserting the given identity, expiring in TokenTTL.
func (s *TokenService) Issue(login, displayName, role string) (string, error) {
	if login == "" {
		return "", errors.New("login is required")
	}
	now := s.now()
	claims := &Claims{
		Login:       login,
		DisplayName: displayName,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token string and returns its claims. Expired and
// malformed tokens map to distinct sentinel errors so callers can log
// them apart while answering the user the same way.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}
