// Package handler provides HTTP handlers for the auth service.
package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/artpromedia/samltoken"
	"github.com/artpromedia/samltoken/internal/config"
	"github.com/artpromedia/samltoken/internal/middleware"
	"github.com/artpromedia/samltoken/internal/models"
	"github.com/artpromedia/samltoken/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SSOHandler handles SAML SSO HTTP requests.
type SSOHandler struct {
	ssoService *service.SSOService
	cfg        *config.Config
	validate   *validator.Validate
}

// NewSSOHandler creates a new SSOHandler.
func NewSSOHandler(ssoService *service.SSOService, cfg *config.Config, v *validator.Validate) *SSOHandler {
	return &SSOHandler{ssoService: ssoService, cfg: cfg, validate: v}
}

// RegisterRoutes registers the SSO handler routes. sessionAuth guards
// the session-introspection endpoint with internal/middleware's
// AuthMiddleware.Authenticate; adminAuth guards connection management;
// acsRateLimit applies a stricter per-IP limit to the ACS endpoint,
// which accepts unauthenticated POSTs from whatever IdP the caller
// claims to be.
func (h *SSOHandler) RegisterRoutes(r chi.Router, adminAuth, sessionAuth, acsRateLimit func(http.Handler) http.Handler) {
	r.With(acsRateLimit).Post("/sso/saml/acs", h.ACS)
	r.Get("/sso/saml/metadata", h.Metadata)

	r.Group(func(r chi.Router) {
		r.Use(sessionAuth)
		r.Get("/sso/session", h.Session)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminAuth)
		r.Get("/sso/connections", h.ListConnections)
		r.Post("/sso/connections", h.CreateConnection)
		r.Get("/sso/connections/{id}", h.GetConnection)
		r.Patch("/sso/connections/{id}", h.UpdateConnection)
		r.Delete("/sso/connections/{id}", h.DeleteConnection)
	})
}

// Session returns the claims carried by the caller's session token, so
// a host application can introspect what a previous ACS call issued it
// without re-parsing the token locally.
// GET /sso/session
func (h *SSOHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserClaims(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "no session claims in request context")
		return
	}

	resp := models.SessionResponse{
		TokenType: "Bearer",
		Subject:   claims.NameID,
		Issuer:    claims.Issuer,
	}
	for claimType := range claims.ClaimTypes {
		resp.Claims = append(resp.Claims, claimType)
	}
	respondJSON(w, http.StatusOK, resp)
}

// ACS handles the SAML assertion consumer service callback from the IdP.
// POST /sso/saml/acs
func (h *SSOHandler) ACS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}

	samlResponse := r.FormValue("SAMLResponse")
	if samlResponse == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "SAMLResponse form field required")
		return
	}

	assertionBytes, err := base64.StdEncoding.DecodeString(samlResponse)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "SAMLResponse is not valid base64")
		return
	}

	session, err := h.ssoService.HandleACS(r.Context(), assertionBytes)
	if err != nil {
		handleSSOError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// Metadata returns the service provider metadata consumed by an IdP
// when configuring a new connection.
// GET /sso/saml/metadata
func (h *SSOHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	metadata := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<EntityDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata" entityID=%q>
  <SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST" Location=%q index="0" isDefault="true"/>
  </SPSSODescriptor>
</EntityDescriptor>`, h.cfg.SAML.SPEntityID, h.cfg.SAML.ACSURL)

	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	w.Write([]byte(metadata))
}

// ListConnections returns all configured SAML connections.
// GET /sso/connections
func (h *SSOHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.ssoService.ListConnections(r.Context())
	if err != nil {
		handleSSOError(w, err)
		return
	}

	out := make([]models.ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		out = append(out, toConnectionResponse(c))
	}
	respondJSON(w, http.StatusOK, out)
}

// CreateConnection configures a new trusted SAML connection.
// POST /sso/connections
func (h *SSOHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	conn, err := h.ssoService.CreateConnection(r.Context(), &req)
	if err != nil {
		handleSSOError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toConnectionResponse(conn))
}

// GetConnection returns a single connection.
// GET /sso/connections/{id}
func (h *SSOHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid connection id")
		return
	}

	conn, err := h.ssoService.GetConnection(r.Context(), id)
	if err != nil {
		handleSSOError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// UpdateConnection patches an existing connection.
// PATCH /sso/connections/{id}
func (h *SSOHandler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid connection id")
		return
	}

	var req models.UpdateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	conn, err := h.ssoService.UpdateConnection(r.Context(), id, &req)
	if err != nil {
		handleSSOError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// DeleteConnection removes a connection.
// DELETE /sso/connections/{id}
func (h *SSOHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid connection id")
		return
	}

	if err := h.ssoService.DeleteConnection(r.Context(), id); err != nil {
		handleSSOError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toConnectionResponse(c *models.Connection) models.ConnectionResponse {
	return models.ConnectionResponse{
		ID:                      c.ID,
		Name:                    c.Name,
		IDPEntityID:             c.IDPEntityID,
		ACSURL:                  c.ACSURL,
		Audience:                c.Audience,
		IsEnabled:               c.IsEnabled,
		RequireSignedAssertions: c.RequireSignedAssertions,
		ClockSkewSeconds:        c.ClockSkewSeconds,
		CertificateCount:        len(c.IDPCertificatesPEM),
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
}

// handleSSOError maps service and core errors to HTTP responses.
func handleSSOError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrConnectionNotFound):
		respondError(w, http.StatusNotFound, "connection_not_found", "SSO connection not found")
	case errors.Is(err, service.ErrConnectionDisabled):
		respondError(w, http.StatusForbidden, "connection_disabled", "SSO connection is disabled")
	case errors.Is(err, service.ErrInvalidCertificate):
		respondError(w, http.StatusBadRequest, "invalid_certificate", err.Error())
	case samltoken.IsKind(err, samltoken.KindMalformed), samltoken.IsKind(err, samltoken.KindOversizeInput):
		respondError(w, http.StatusBadRequest, "malformed_assertion", err.Error())
	case samltoken.IsKind(err, samltoken.KindMissingSignature),
		samltoken.IsKind(err, samltoken.KindInvalidSignature),
		samltoken.IsKind(err, samltoken.KindSignatureKeyNotFound):
		respondError(w, http.StatusUnauthorized, "signature_invalid", err.Error())
	case samltoken.IsKind(err, samltoken.KindInvalidLifetime),
		samltoken.IsKind(err, samltoken.KindInvalidAudience),
		samltoken.IsKind(err, samltoken.KindInvalidIssuer),
		samltoken.IsKind(err, samltoken.KindMissingSubject),
		samltoken.IsKind(err, samltoken.KindTokenReplayed),
		samltoken.IsKind(err, samltoken.KindRequiresOverride):
		respondError(w, http.StatusBadRequest, "assertion_rejected", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled SSO error")
		respondError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}

// ============================================================
// RESPONSE HELPERS
// ============================================================

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: code, Message: message})
}

func respondValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondError(w, http.StatusBadRequest, "validation_error", verrs.Error())
		return
	}
	respondError(w, http.StatusBadRequest, "validation_error", err.Error())
}
