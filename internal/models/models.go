// Package models defines the persistent data model for the SSO bridge:
// configured SAML connections and the audit trail of admin changes to
// them. The SAML assertion data model itself lives in the samltoken
// package; these types describe only what the consuming service stores
// about each identity provider it trusts.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection is a single trusted SAML identity provider: the issuer
// entity ID it asserts, the certificate(s) used to verify its
// signatures, and the service-provider-side endpoints it posts back
// to.
type Connection struct {
	ID                      uuid.UUID
	Name                    string
	IDPEntityID             string
	IDPCertificatesPEM      []string
	ACSURL                  string
	Audience                string
	IsEnabled               bool
	RequireSignedAssertions bool
	ClockSkewSeconds        int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// AuditLog records an admin action against a Connection, or an ACS
// callback outcome, for later review.
type AuditLog struct {
	ID           uuid.UUID
	ConnectionID *uuid.UUID
	Event        string
	Detail       string
	OccurredAt   time.Time
}

// Audit event names.
const (
	EventConnectionCreated = "connection_created"
	EventConnectionUpdated = "connection_updated"
	EventConnectionDeleted = "connection_deleted"
	EventACSSucceeded      = "acs_succeeded"
	EventACSFailed         = "acs_failed"
)
