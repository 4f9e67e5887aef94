// Package auth issues and verifies the bearer tokens attached to every REST
// call and every frame envelope. Tokens are HMAC-SHA256 JWTs; verification
// failures collapse into one opaque error so callers never leak the reason
// beyond "Unauthorized".
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is the single error returned for any verification failure:
// bad signature, wrong algorithm, expired, or missing claims.
var ErrUnauthorized = errors.New("unauthorized")

// DefaultTokenTTL is the login token lifetime.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the verified identity bound to a request. Derived from the
// bearer token per request and never cached.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	DeviceID string `json:"device_id"`
	PlanType string `json:"plan_type"`
	jwt.RegisteredClaims
}

// Authority signs and verifies tokens with one shared secret.
type Authority struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthority builds an Authority. A zero ttl uses DefaultTokenTTL.
func NewAuthority(secret []byte, ttl time.Duration) (*Authority, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authority{secret: secret, ttl: ttl}, nil
}

// Issue signs a token for the given identity, expiring after the configured
// TTL.
func (a *Authority) Issue(userID int64, username, deviceID, planType string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		DeviceID: deviceID,
		PlanType: planType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string. The signing method is pinned
// to HS256; expiry is mandatory; user_id and username must be present. Any
// failure yields ErrUnauthorized.
func (a *Authority) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if claims.UserID == 0 || claims.Username == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization: Bearer header.
// Missing and malformed headers both yield ErrUnauthorized.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if header == "" || !strings.HasPrefix(header, prefix) {
		return "", ErrUnauthorized
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}
