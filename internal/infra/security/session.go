package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// ErrSessionSecretMissing indicates the session signer was built without a secret.
var ErrSessionSecretMissing = errors.New("session: signing secret not configured")

// ErrSessionTokenInvalid indicates a token that failed signature or claim checks.
var ErrSessionTokenInvalid = errors.New("session: invalid token")

// SessionClaims carries the authenticated principal inside an access token.
type SessionClaims struct {
	Identity  string `json:"identity"`
	SiteAdmin bool   `json:"site_admin,omitempty"`
	jwt.RegisteredClaims
}

// SessionSigner issues and verifies HS256 access tokens for authenticated
// principals. Tokens are short lived; there is no refresh flow here.
type SessionSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSessionSigner constructs a signer. The secret must be non-empty.
func NewSessionSigner(secret, issuer string, ttl time.Duration) (*SessionSigner, error) {
	if secret == "" {
		return nil, ErrSessionSecretMissing
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &SessionSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// Issue signs an access token for the principal.
func (s *SessionSigner) Issue(principalID, identity string, siteAdmin bool) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Identity:  identity,
		SiteAdmin: siteAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principalID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (s *SessionSigner) Verify(raw string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrSessionTokenInvalid, t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionTokenInvalid, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrSessionTokenInvalid
	}

	return claims, nil
}
