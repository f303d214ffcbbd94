// Package auth turns external credentials into identity claims and issues
// the session tokens handed back to callers.
//
// SESSION TOKENS:
// A session token is an HS256 JWT whose payload always carries the same four
// application claims for a given user: id, name, role and email. Issuing twice
// for the same user yields tokens that differ only in iat/exp and signature.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"id":"...","name":"...","role":"student","email":"...","iss":"jobmatch-auth","iat":...,"exp":...}
//
// The server can verify the signature without any DB lookup, just the secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/jobmatch-auth/internal/model"
)

const (
	issuer = "jobmatch-auth"

	// DefaultSessionTTL matches the week-long sessions the web client expects.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// TokenService signs and verifies session tokens.
// The same secret must be used for both operations.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// A zero ttl falls back to DefaultSessionTTL.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// SessionClaims is the deterministic payload of a session token.
type SessionClaims struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Role  model.Role `json:"role"`
	Email string     `json:"email"`
	jwt.RegisteredClaims
}

// ClaimsFor builds the token payload for u. It contains nothing that is not
// derived from the canonical record.
func ClaimsFor(u *model.User) SessionClaims {
	return SessionClaims{
		ID:    u.ID,
		Name:  u.Name,
		Role:  u.Role,
		Email: u.Email,
	}
}

// Issue creates and signs a session token for the given canonical user.
func (s *TokenService) Issue(u *model.User) (string, error) {
	if u == nil || u.ID == "" {
		return "", errors.New("auth: cannot issue a session for a user without an id")
	}
	return s.issueWithDuration(u, s.ttl)
}

// issueWithDuration signs a token with a custom lifetime.
// Tests use a negative duration to produce expired tokens.
func (s *TokenService) issueWithDuration(u *model.User, d time.Duration) (string, error) {
	now := s.now()

	c := ClaimsFor(u)
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   u.ID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a session token and returns its payload.
//
// Checks performed by the jwt library: signature, expiry, issuer and algorithm.
// Pinning HS256 with WithValidMethods blocks "alg":"none" style confusion.
func (s *TokenService) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.ID == "" {
		return nil, fmt.Errorf("auth: token has no user id")
	}

	return c, nil
}
