// Package auth guards the API behind a shared household PIN. A correct PIN
// is exchanged for a short-lived HS256 session token.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrNotAuthorized covers wrong PINs and missing, expired or forged tokens.
var ErrNotAuthorized = errors.New("Authentication failed.")

var (
	ErrMissingSecret = errors.New("jwt secret is required when a PIN hash is configured")
	ErrEmptyPIN      = errors.New("pin must not be empty")
)

const issuer = "hisab"

// Claims identify a session. Subject is fixed since the PIN is shared.
type Claims struct {
	jwt.RegisteredClaims
}

// Gate checks PINs and issues and validates session tokens. A Gate built
// with an empty PIN hash is disabled and admits everything.
type Gate struct {
	pinHash  []byte
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewGate(pinHash, secret string, tokenTTL time.Duration) (*Gate, error) {
	if pinHash != "" && secret == "" {
		return nil, ErrMissingSecret
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Gate{
		pinHash:  []byte(pinHash),
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}, nil
}

// Enabled reports whether a PIN hash is configured.
func (g *Gate) Enabled() bool {
	return len(g.pinHash) > 0
}

// Login exchanges a correct PIN for a signed token and its expiry.
func (g *Gate) Login(pin string) (string, time.Time, error) {
	if !g.Enabled() {
		return "", time.Time{}, nil
	}
	if err := bcrypt.CompareHashAndPassword(g.pinHash, []byte(pin)); err != nil {
		return "", time.Time{}, ErrNotAuthorized
	}

	now := g.now()
	expires := now.Add(g.tokenTTL)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "household",
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// Validate accepts a bearer token. Any failure is ErrNotAuthorized.
func (g *Gate) Validate(token string) (*Claims, error) {
	if !g.Enabled() {
		return &Claims{}, nil
	}
	if token == "" {
		return nil, ErrNotAuthorized
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(g.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrNotAuthorized
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// HashPIN returns the bcrypt hash to configure as PIN_HASH.
func HashPIN(pin string) (string, error) {
	if strings.TrimSpace(pin) == "" {
		return "", ErrEmptyPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}
