// Package auth issues and validates the bearer tokens API clients use.
// Clients exchange their configured id and secret for a signed JWT via the
// client-credentials grant; every other endpoint requires that token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"qplace/internal/platform/middleware"
	dErrors "qplace/pkg/domain-errors"
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// TokenService issues and validates access tokens for the configured
// client.
type TokenService struct {
	signingKey       []byte
	clientID         string
	clientSecretHash string
	ttl              time.Duration
	now              func() time.Time
}

// NewTokenService creates a TokenService for a single configured client.
// The secret hash comes from HashSecret.
func NewTokenService(signingKey, clientID, clientSecretHash string, ttl time.Duration) *TokenService {
	return &TokenService{
		signingKey:       []byte(signingKey),
		clientID:         clientID,
		clientSecretHash: clientSecretHash,
		ttl:              ttl,
		now:              time.Now,
	}
}

// IssueToken checks the presented credentials and returns a signed access
// token with its lifetime. Both checks run before the combined verdict so
// a wrong id costs the same time as a wrong secret.
func (s *TokenService) IssueToken(clientID, clientSecret string) (string, time.Duration, error) {
	idMatch := subtle.ConstantTimeCompare([]byte(clientID), []byte(s.clientID)) == 1
	secretErr := VerifySecret(clientSecret, s.clientSecretHash)
	if !idMatch || secretErr != nil {
		return "", 0, dErrors.New(dErrors.CodeUnauthorized, "invalid client credentials")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return signed, s.ttl, nil
}

// ValidateToken parses and verifies an access token.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidatorAdapter exposes a TokenService as the validator the HTTP
// middleware expects.
type ValidatorAdapter struct {
	service *TokenService
}

func NewValidatorAdapter(service *TokenService) *ValidatorAdapter {
	return &ValidatorAdapter{service: service}
}

func (a *ValidatorAdapter) ValidateToken(tokenString string) (*middleware.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{ClientID: claims.ClientID}, nil
}
