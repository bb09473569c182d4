package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/models"
)

// ErrInvalidToken is returned for API tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the JWT payload issued to API clients. The organization
// claim is what the middleware turns back into a tenant context, so a
// token can never read across tenants no matter what it asks for.
type TokenClaims struct {
	OrganizationID string   `json:"org"`
	Roles          []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 API tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a token issuer. The secret must be at least 32
// bytes.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes")
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue mints a token for the user.
func (t *TokenIssuer) Issue(user *models.User) (string, error) {
	now := time.Now().UTC()

	claims := TokenClaims{
		OrganizationID: user.OrgID.String(),
		Roles:          user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   user.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.Must(uuid.NewV7()).String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (t *TokenIssuer) Verify(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
