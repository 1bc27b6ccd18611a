package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer               = "fleetdesk"
	secretEnvVariable    = "FLEETDESK_AUTH_SECRET"
	issuerKeyEnvVariable = "FLEETDESK_ISSUER_KEY"
)

var (
	errMissingSecret = errors.New("auth secret is not configured")

	secretMu  sync.Mutex
	secret    cachedSecret
	issuerKey cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the actor identity inside a signed token. Display name and
// email ride along so audit entries can be stamped without a directory
// lookup.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 JWT identifying the actor.
func GenerateToken(actor Actor, ttl time.Duration) (string, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return "", errors.New("actor id is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := Claims{
		Name:  strings.TrimSpace(actor.Name),
		Email: strings.TrimSpace(strings.ToLower(actor.Email)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strings.TrimSpace(actor.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies the token signature and required claims,
// returning the embedded actor.
func ParseAndValidate(token string) (Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Actor{}, ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return Actor{}, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil {
		return Actor{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Actor{}, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return Actor{}, ErrInvalidToken
	}
	return Actor{ID: claims.Subject, Name: claims.Name, Email: claims.Email}, nil
}

func validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := time.Now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return errors.New("token not yet valid")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret.err = errMissingSecret
		secret.ready = true
		return nil, secret.err
	}
	secret.value = []byte(raw)
	secret.err = nil
	secret.ready = true
	return secret.value, nil
}

// TokensEnabled reports whether a signing secret is configured. Without one
// the service runs in unauthenticated single-operator mode.
func TokensEnabled() bool {
	_, err := loadSecret()
	return err == nil
}

// VerifyIssuerKey reports whether presented matches the configured issuer
// key. Token minting is refused outright when no key is configured, so the
// mint endpoint never hands out identities on a bare claim.
func VerifyIssuerKey(presented string) bool {
	key, err := loadIssuerKey()
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, []byte(strings.TrimSpace(presented))) == 1
}

func loadIssuerKey() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if issuerKey.ready {
		return issuerKey.value, issuerKey.err
	}
	raw := strings.TrimSpace(os.Getenv(issuerKeyEnvVariable))
	if raw == "" {
		issuerKey.err = errors.New("issuer key is not configured")
		issuerKey.ready = true
		return nil, issuerKey.err
	}
	issuerKey.value = []byte(raw)
	issuerKey.err = nil
	issuerKey.ready = true
	return issuerKey.value, nil
}

// ResetSecretForTests clears the cached secret and issuer key values. Only
// intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
	issuerKey = cachedSecret{}
}
