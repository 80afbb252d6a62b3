// Package token issues and validates the session JWT a host application
// uses after a SAML assertion has been translated into a claims
// identity. It has no notion of passwords, refresh tokens, or
// multi-domain roles; the session token is a thin, short-lived
// wrapper around the identity the core already validated.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/artpromedia/samltoken"
	"github.com/artpromedia/samltoken/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Claims represents the session JWT's claims: the SAML subject's name
// identifier, the resolved issuer, and the flattened claim type/value
// pairs the assertion carried, for a host application that doesn't
// want to re-parse the original assertion on every request.
type Claims struct {
	jwt.RegisteredClaims
	ConnectionID uuid.UUID         `json:"connection_id"`
	NameID       string            `json:"name_id"`
	ClaimTypes   map[string]string `json:"claims,omitempty"`
	ActorNameID  string            `json:"actor_name_id,omitempty"`
}

// Service handles JWT session token operations.
type Service struct {
	secretKey         []byte
	accessTokenExpiry time.Duration
	issuer            string
	audience          string
}

// NewService creates a new token service.
func NewService(cfg *config.JWTConfig) *Service {
	return &Service{
		secretKey:         []byte(cfg.SecretKey),
		accessTokenExpiry: cfg.AccessTokenExpiry,
		issuer:            cfg.Issuer,
		audience:          cfg.Audience,
	}
}

// IssueParams holds the data a session token is built from.
type IssueParams struct {
	ConnectionID uuid.UUID
	Principal    *samltoken.ClaimsIdentity
}

// Issue mints a session JWT from a validated SAML principal.
func (s *Service) Issue(params IssueParams) (string, time.Duration, error) {
	nameID, _ := params.Principal.NameIdentifier()

	claimTypes := make(map[string]string, len(params.Principal.Claims))
	for _, c := range params.Principal.Claims {
		if c.Type == samltoken.ClaimTypeNameIdentifier {
			continue
		}
		claimTypes[c.Type] = c.Value
	}

	var actorNameID string
	if params.Principal.Actor != nil {
		actorNameID, _ = params.Principal.Actor.NameIdentifier()
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   nameID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenExpiry)),
			ID:        uuid.New().String(),
		},
		ConnectionID: params.ConnectionID,
		NameID:       nameID,
		ClaimTypes:   claimTypes,
		ActorNameID:  actorNameID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, s.accessTokenExpiry, nil
}

// Validate validates a session token and returns its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// AccessTokenExpiry returns the session token lifetime.
func (s *Service) AccessTokenExpiry() time.Duration {
	return s.accessTokenExpiry
}
