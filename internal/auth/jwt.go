// Package auth issues and checks the credentials of the blogging API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A client registers or logs in with email + password (or via GitHub).
//  2. The server answers with the user and a signed JWT.
//  3. The client sends it back on every call as "Authorization: Token <jwt>"
//     (the "Bearer" scheme and the "token" cookie set by the GitHub flow work too).
//  4. Middleware validates the JWT and puts the user ID in the request context.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<user id>","iss":"conduit","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "conduit"

// DefaultTokenTTL is used when the configured lifetime is zero.
const DefaultTokenTTL = 72 * time.Hour

const minSecretLength = 16

var (
	// ErrTokenExpired is returned by Validate for a well-formed token past its exp.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrInvalidToken covers every other rejection.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// TokenService signs and checks HS256 tokens with one secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. ttl <= 0 means DefaultTokenTTL.
// Production secrets should be 32+ random bytes, e.g.
// CONDUIT_AUTH_JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens produced by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate signs a token for userID valid for the configured TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. A negative d
// mints an already-expired token.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	issuedAt := time.Now()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(d)),
	}).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token for %s: %w", userID, err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns the user ID it was issued for.
//
// A token passes only if all of these hold:
//   - it is signed with HS256 and this secret ("alg: none" is refused)
//   - iss is "conduit"
//   - exp is present and in the future
//   - sub is not empty
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var rc jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(tokenStr, &rc,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case rc.Subject == "":
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return rc.Subject, nil
}
