package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/folio-sh/folio"
)

// DefaultTTL is the fixed validity window for issued tokens.
const DefaultTTL = 12 * time.Hour

// ErrInvalidToken is returned when a token is malformed, its signature
// does not verify, or its expiry has passed.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the self-contained contents of a bearer token. The user ID
// rides in the registered Subject claim.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c Claims) UserID() string {
	return c.Subject
}

// TokenService signs and verifies HS256 tokens with a single shared
// secret configured at process start. No server-side session state
// exists; the token is the session.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService builds a TokenService. The secret is required; a
// non-positive ttl falls back to DefaultTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("new token service: signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token embedding the user's identity claims, issued now
// and expiring after the configured window.
func (t *TokenService) Issue(u folio.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses and validates a token, returning its claims.
// Any failure, signature, shape, or expiry, collapses into
// ErrInvalidToken so callers can't leak the distinction.
func (t *TokenService) Verify(token string) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if tok.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
