// Package auth issues and validates the bearer tokens used by the
// messaging collaborator and operators on the bridge's own API surface.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, mis-signed and expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by a bridge API token.
type Claims struct {
	Subject string   `json:"sub_name"`
	Tenants []string `json:"tenants"` // empty means all tenants
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

// AllowsTenant reports whether the token may act for the given tenant.
func (c *Claims) AllowsTenant(tenantID string) bool {
	if len(c.Tenants) == 0 {
		return true
	}
	for _, t := range c.Tenants {
		if t == tenantID {
			return true
		}
	}
	return false
}

// TokenValidator validates HS256 bearer tokens.
type TokenValidator struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenValidator creates a TokenValidator over a shared secret.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), ttl: 24 * time.Hour}
}

// Generate signs a token. Used by the CLI to mint collaborator credentials.
func (v *TokenValidator) Generate(subject string, tenants, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		Tenants: tenants,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "fleetbridge",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Validate parses and verifies a token string.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
