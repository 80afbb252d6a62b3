// Package models provides request and response DTOs.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================
// SSO CONNECTION ADMIN REQUESTS
// ============================================================

// CreateConnectionRequest creates a new trusted SAML connection.
type CreateConnectionRequest struct {
	Name                    string   `json:"name" validate:"required,min=1,max=255"`
	IDPEntityID             string   `json:"idp_entity_id" validate:"required,absoluteuri"`
	IDPCertificatesPEM      []string `json:"idp_certificates_pem" validate:"required,min=1,dive,required"`
	ACSURL                  string   `json:"acs_url" validate:"required,url"`
	Audience                string   `json:"audience" validate:"required,absoluteuri"`
	RequireSignedAssertions bool     `json:"require_signed_assertions"`
	ClockSkewSeconds        int      `json:"clock_skew_seconds" validate:"gte=0,lte=3600"`
}

// UpdateConnectionRequest patches an existing connection. Fields left
// nil are unchanged.
type UpdateConnectionRequest struct {
	Name                    *string  `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	IDPCertificatesPEM      []string `json:"idp_certificates_pem,omitempty" validate:"omitempty,min=1,dive,required"`
	ACSURL                  *string  `json:"acs_url,omitempty" validate:"omitempty,url"`
	Audience                *string  `json:"audience,omitempty" validate:"omitempty,absoluteuri"`
	IsEnabled               *bool    `json:"is_enabled,omitempty"`
	RequireSignedAssertions *bool    `json:"require_signed_assertions,omitempty"`
	ClockSkewSeconds        *int     `json:"clock_skew_seconds,omitempty" validate:"omitempty,gte=0,lte=3600"`
}

// ConnectionResponse is the admin-facing view of a Connection.
type ConnectionResponse struct {
	ID                      uuid.UUID `json:"id"`
	Name                    string    `json:"name"`
	IDPEntityID             string    `json:"idp_entity_id"`
	ACSURL                  string    `json:"acs_url"`
	Audience                string    `json:"audience"`
	IsEnabled               bool      `json:"is_enabled"`
	RequireSignedAssertions bool      `json:"require_signed_assertions"`
	ClockSkewSeconds        int       `json:"clock_skew_seconds"`
	CertificateCount        int       `json:"certificate_count"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// ============================================================
// ACS RESPONSE
// ============================================================

// SessionResponse is returned after a SAML assertion validates
// successfully; it carries the session token the host application
// should use for subsequent requests.
type SessionResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	Subject     string   `json:"subject"`
	Issuer      string   `json:"issuer"`
	Claims      []string `json:"claim_types,omitempty"`
}
