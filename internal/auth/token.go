package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingCredential = errors.New("missing bearer credential")
	ErrInvalidToken      = errors.New("invalid token")
	ErrRevoked           = errors.New("token revoked")
)

// Claims is the subset of the access token the relay relies on.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// Revocations reports whether a token id has been revoked.
type Revocations interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret      []byte
	revocations Revocations
	now         func() time.Time
}

// NewVerifier builds a verifier. revocations may be nil.
func NewVerifier(secret string, revocations Revocations) *Verifier {
	return &Verifier{secret: []byte(secret), revocations: revocations, now: time.Now}
}

// Verify parses the token, enforcing HS256, a subject and an expiry.
func (v *Verifier) Verify(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingCredential
	}
	if len(v.secret) == 0 {
		return Claims{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	var rc jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &rc, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if rc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	if rc.ID != "" && v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, rc.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("revocation lookup: %w", err)
		}
		if revoked {
			return Claims{}, ErrRevoked
		}
	}

	return Claims{UserID: rc.Subject, TokenID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}, nil
}

// Sign issues an HS256 token for userID. Used by dev tooling and tests.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// CredentialFromRequest returns the bearer credential from the "token" query
// parameter or the Authorization header. Browsers cannot set headers on a
// WebSocket handshake, hence the query parameter.
func CredentialFromRequest(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
