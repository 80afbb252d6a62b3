// Package service provides SSO-related business logic.
package service

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/artpromedia/samltoken"
	"github.com/artpromedia/samltoken/internal/config"
	"github.com/artpromedia/samltoken/internal/models"
	"github.com/artpromedia/samltoken/internal/repository"
	"github.com/artpromedia/samltoken/internal/token"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrConnectionNotFound = errors.New("sso connection not found")
	ErrConnectionDisabled = errors.New("sso connection is disabled")
	ErrInvalidCertificate = errors.New("invalid idp certificate")
)

// connectionRepository is the persistence surface SSOService needs.
// repository.Repository satisfies it against Postgres; testutil.MockRepository
// satisfies it in tests.
type connectionRepository interface {
	CreateConnection(ctx context.Context, c *models.Connection) error
	GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	GetConnectionByEntityID(ctx context.Context, entityID string) (*models.Connection, error)
	ListConnections(ctx context.Context) ([]*models.Connection, error)
	UpdateConnection(ctx context.Context, c *models.Connection) error
	DeleteConnection(ctx context.Context, id uuid.UUID) error
	RecordAudit(ctx context.Context, entry *models.AuditLog) error
}

// SSOService is the thin bridge between an HTTP SAML SSO surface and
// the samltoken core: it resolves which IdP connection an assertion
// claims to be from, builds validation parameters from that
// connection's stored certificates, calls Handler.ValidateToken, and
// issues a session token from the resulting claims identity. It does
// not provision users, manage organizations, or speak OIDC.
type SSOService struct {
	repo    connectionRepository
	handler *samltoken.Handler
	tokens  *token.Service
	replay  samltoken.TokenReplayValidator
	cfg     *config.Config
}

// NewSSOService creates a new SSOService.
func NewSSOService(repo connectionRepository, h *samltoken.Handler, tokens *token.Service, replay samltoken.TokenReplayValidator, cfg *config.Config) *SSOService {
	return &SSOService{repo: repo, handler: h, tokens: tokens, replay: replay, cfg: cfg}
}

// HandleACS validates a base64-less, already-decoded SAML assertion
// body posted to the ACS endpoint and, on success, issues a session
// token for the resolved principal.
func (s *SSOService) HandleACS(ctx context.Context, assertionBytes []byte) (*models.SessionResponse, error) {
	probe, err := s.handler.ReadToken(assertionBytes)
	if err != nil {
		s.audit(ctx, nil, models.EventACSFailed, err.Error())
		return nil, err
	}

	conn, err := s.repo.GetConnectionByEntityID(ctx, probe.Issuer)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit(ctx, nil, models.EventACSFailed, fmt.Sprintf("unknown issuer %q", probe.Issuer))
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}
	if !conn.IsEnabled {
		s.audit(ctx, &conn.ID, models.EventACSFailed, "connection disabled")
		return nil, ErrConnectionDisabled
	}

	keys, err := connectionKeys(conn)
	if err != nil {
		return nil, err
	}

	params := samltoken.NewValidationParameters()
	params.RequireSignedTokens = conn.RequireSignedAssertions
	params.IssuerSigningKeys = keys
	params.ValidAudiences = []string{conn.Audience}
	params.ClockSkew = time.Duration(conn.ClockSkewSeconds) * time.Second
	if s.replay != nil {
		params.ValidateTokenReplay = s.replay
	}

	result, err := s.handler.ValidateToken(assertionBytes, params)
	if err != nil {
		s.audit(ctx, &conn.ID, models.EventACSFailed, err.Error())
		return nil, err
	}

	accessToken, expiry, err := s.tokens.Issue(token.IssueParams{
		ConnectionID: conn.ID,
		Principal:    result.Principal,
	})
	if err != nil {
		return nil, err
	}

	nameID, _ := result.Principal.NameIdentifier()
	claimTypes := make([]string, 0, len(result.Principal.Claims))
	for _, c := range result.Principal.Claims {
		claimTypes = append(claimTypes, c.Type)
	}

	s.audit(ctx, &conn.ID, models.EventACSSucceeded, fmt.Sprintf("subject %q", nameID))

	return &models.SessionResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiry.Seconds()),
		Subject:     nameID,
		Issuer:      probe.Issuer,
		Claims:      claimTypes,
	}, nil
}

// connectionKeys parses a Connection's stored PEM certificates into
// samltoken verify-only keys. Stored connections don't track a kid per
// certificate, so each key's kid is "cert-<index>", its position in
// IDPCertificatesPEM.
func connectionKeys(conn *models.Connection) ([]samltoken.SecurityKey, error) {
	keys := make([]samltoken.SecurityKey, 0, len(conn.IDPCertificatesPEM))
	for i, certPEM := range conn.IDPCertificatesPEM {
		block, _ := pem.Decode([]byte(certPEM))
		if block == nil {
			return nil, fmt.Errorf("%w: certificate %d is not PEM-encoded", ErrInvalidCertificate, i)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: certificate %d: %v", ErrInvalidCertificate, i, err)
		}
		kid := fmt.Sprintf("cert-%d", i)
		keys = append(keys, samltoken.NewRSAVerifyKey(kid, cert))
	}
	return keys, nil
}

func (s *SSOService) audit(ctx context.Context, connectionID *uuid.UUID, event, detail string) {
	entry := &models.AuditLog{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		Event:        event,
		Detail:       detail,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.repo.RecordAudit(ctx, entry); err != nil {
		// auditing is best-effort; a storage hiccup must not fail the
		// login that already succeeded or already failed for its own reasons
		_ = err
	}
}

// ============================================================
// CONNECTION ADMIN
// ============================================================

// CreateConnection stores a new trusted SAML connection.
func (s *SSOService) CreateConnection(ctx context.Context, req *models.CreateConnectionRequest) (*models.Connection, error) {
	if _, err := connectionKeys(&models.Connection{IDPCertificatesPEM: req.IDPCertificatesPEM}); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conn := &models.Connection{
		ID:                      uuid.New(),
		Name:                    req.Name,
		IDPEntityID:             req.IDPEntityID,
		IDPCertificatesPEM:      req.IDPCertificatesPEM,
		ACSURL:                  req.ACSURL,
		Audience:                req.Audience,
		IsEnabled:               true,
		RequireSignedAssertions: req.RequireSignedAssertions,
		ClockSkewSeconds:        req.ClockSkewSeconds,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.repo.CreateConnection(ctx, conn); err != nil {
		return nil, err
	}
	s.audit(ctx, &conn.ID, models.EventConnectionCreated, conn.Name)
	return conn, nil
}

// GetConnection returns a connection by ID.
func (s *SSOService) GetConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	conn, err := s.repo.GetConnectionByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrConnectionNotFound
	}
	return conn, err
}

// ListConnections returns all configured connections.
func (s *SSOService) ListConnections(ctx context.Context) ([]*models.Connection, error) {
	return s.repo.ListConnections(ctx)
}

// UpdateConnection applies a partial update to an existing connection.
func (s *SSOService) UpdateConnection(ctx context.Context, id uuid.UUID, req *models.UpdateConnectionRequest) (*models.Connection, error) {
	conn, err := s.repo.GetConnectionByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		conn.Name = *req.Name
	}
	if req.IDPCertificatesPEM != nil {
		if _, err := connectionKeys(&models.Connection{IDPCertificatesPEM: req.IDPCertificatesPEM}); err != nil {
			return nil, err
		}
		conn.IDPCertificatesPEM = req.IDPCertificatesPEM
	}
	if req.ACSURL != nil {
		conn.ACSURL = *req.ACSURL
	}
	if req.Audience != nil {
		conn.Audience = *req.Audience
	}
	if req.IsEnabled != nil {
		conn.IsEnabled = *req.IsEnabled
	}
	if req.RequireSignedAssertions != nil {
		conn.RequireSignedAssertions = *req.RequireSignedAssertions
	}
	if req.ClockSkewSeconds != nil {
		conn.ClockSkewSeconds = *req.ClockSkewSeconds
	}
	conn.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateConnection(ctx, conn); err != nil {
		return nil, err
	}
	s.audit(ctx, &conn.ID, models.EventConnectionUpdated, conn.Name)
	return conn, nil
}

// DeleteConnection removes a connection.
func (s *SSOService) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteConnection(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConnectionNotFound
		}
		return err
	}
	s.audit(ctx, &id, models.EventConnectionDeleted, id.String())
	return nil
}
