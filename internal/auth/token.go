package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrMissingSecret = errors.New("jwt secret is not configured")

// SecretSource supplies the HMAC key used to sign and verify tokens.
type SecretSource interface {
	Secret() string
}

// StaticSecret is a SecretSource that may be replaced at runtime, for example
// after the secret has been fetched from Secret Manager.
type StaticSecret struct {
	mu    sync.RWMutex
	value string
}

// NewStaticSecret returns a secret source holding value.
func NewStaticSecret(value string) *StaticSecret {
	return &StaticSecret{value: strings.TrimSpace(value)}
}

// Secret implements SecretSource.
func (s *StaticSecret) Secret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the secret.
func (s *StaticSecret) Set(value string) {
	s.mu.Lock()
	s.value = strings.TrimSpace(value)
	s.mu.Unlock()
}

// Issuer signs HS256 access tokens.
type Issuer struct {
	secret   SecretSource
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer creates a token issuer.
func NewIssuer(secret SecretSource, audience string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, audience: strings.TrimSpace(audience), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for subject valid for the configured ttl.
func (i *Issuer) Issue(subject, username string) (string, time.Time, error) {
	key := i.secret.Secret()
	if key == "" {
		return "", time.Time{}, ErrMissingSecret
	}
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
